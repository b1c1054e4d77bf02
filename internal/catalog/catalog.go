// Package catalog loads the read-only problem catalog from a directory of
// per-problem JSON files and validates every function_call template at
// load time (spec §4.1, §8: "function_call containing __x__ is rejected
// at catalog load"). The catalog's own authoring format is explicitly
// out of scope for the core (spec §1); this package supplies the minimal
// loader the core's HTTP routes and Executor depend on.
package catalog

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/jsonc"

	"github.com/codecoach/leettutor/internal/logging"
	"github.com/codecoach/leettutor/pkg/types"
)

// Catalog is the immutable-after-load, process-wide problem set (spec §5:
// "the problem catalog, read-only after startup" is one of exactly two
// process-wide shared mutable states, the other being TutorRegistry).
type Catalog struct {
	mu       sync.RWMutex
	problems map[string]*types.Problem
	dir      string
	watcher  *fsnotify.Watcher
}

// Load reads every *.json/*.jsonc file in dir, validates each test case's
// function_call, and returns a Catalog. Any problem that fails validation
// causes Load to fail with a *Error — the whole catalog is rejected rather
// than silently dropping the bad problem, since an unsafe template is a
// content bug that should fail loudly before the server binds a port.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{problems: make(map[string]*types.Problem), dir: dir}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			c.problems = make(map[string]*types.Problem)
			c.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read catalog dir: %w", err)
	}

	loaded := make(map[string]*types.Problem)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".jsonc") {
			continue
		}

		path := filepath.Join(c.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		data = jsonc.ToJSON(data)

		var p types.Problem
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}

		if err := validateProblem(&p); err != nil {
			return err
		}

		loaded[p.ID] = &p
	}

	c.mu.Lock()
	c.problems = loaded
	c.mu.Unlock()
	return nil
}

func validateProblem(p *types.Problem) error {
	allCases := append(append([]types.TestCase{}, p.TestCases...), p.HiddenTestCases...)
	for _, tc := range allCases {
		if err := ValidateFunctionCall(tc.FunctionCall); err != nil {
			return &Error{ProblemID: p.ID, Cause: err}
		}
	}
	return nil
}

// Watch starts an fsnotify watch on the catalog directory and reloads on
// any write/create/remove/rename event, logging (and ignoring) reload
// failures so a bad edit during development doesn't crash the server.
func (c *Catalog) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	c.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := c.reload(); err != nil {
					logging.Error().Err(err).Msg("catalog reload failed, keeping previous catalog")
				} else {
					logging.Info().Str("event", ev.Name).Msg("catalog reloaded")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Msg("catalog watcher error")
			}
		}
	}()
	return nil
}

// Close stops the directory watch, if any.
func (c *Catalog) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// Get returns one problem by id.
func (c *Catalog) Get(id string) (*types.Problem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.problems[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns summaries of every problem, sorted by id for a stable
// response ordering.
func (c *Catalog) List() []types.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Summary, 0, len(c.problems))
	for _, p := range c.problems {
		out = append(out, p.ToSummary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Random picks a problem from the subset matching difficulty/tag filters
// (either may be empty to mean "no filter").
func (c *Catalog) Random(difficulty, tag string) (*types.Problem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var candidates []*types.Problem
	for _, p := range c.problems {
		if difficulty != "" && !strings.EqualFold(p.Difficulty, difficulty) {
			continue
		}
		if tag != "" && !containsTag(p.Tags, tag) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	return candidates[rand.Intn(len(candidates))], nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
