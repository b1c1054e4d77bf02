// Package sessionlog persists one JSON document per tutoring session,
// guaranteeing readers only ever see a pre-write or post-write state.
// Built directly on internal/storage's fsync-then-rename Put, the same
// atomic-write primitive the teacher uses for its own session records.
package sessionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codecoach/leettutor/internal/storage"
	"github.com/codecoach/leettutor/pkg/types"
)

// SessionLog owns every Session document under its storage root. Active
// sessions are cached in memory so repeated mutations (one per chat
// message, hint, submission) don't require a read-modify-write round trip
// through disk; every mutation still triggers a full atomic rewrite.
type SessionLog struct {
	store *storage.Storage
	mu    sync.Mutex
	active map[string]*types.Session
}

// New returns a SessionLog rooted at dir (typically Paths.Sessions).
func New(dir string) *SessionLog {
	return &SessionLog{
		store:  storage.New(dir),
		active: make(map[string]*types.Session),
	}
}

// Start creates a new session document and writes it immediately.
func (l *SessionLog) Start(ctx context.Context, problemID string, mode types.Mode) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}

	session := &types.Session{
		SessionID:       id,
		ProblemID:       problemID,
		Mode:            mode,
		StartedAt:       time.Now().Unix(),
		ChatHistory:     []types.ChatMessage{},
		CodeSubmissions: []types.CodeSubmission{},
		InterviewPhase:  types.PhaseClarification,
	}

	l.mu.Lock()
	l.active[id] = session
	l.mu.Unlock()

	if err := l.persist(ctx, session); err != nil {
		return "", err
	}
	return id, nil
}

// LogMessage appends one chat message and rewrites the document.
func (l *SessionLog) LogMessage(ctx context.Context, sessionID, role, content string) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.ChatHistory = append(s.ChatHistory, types.ChatMessage{
			Role:      role,
			Content:   content,
			Timestamp: time.Now().Unix(),
		})
		return nil
	})
}

// LogSubmission appends one run/submit record.
func (l *SessionLog) LogSubmission(ctx context.Context, sessionID, code string, isSubmit bool, summary types.RunSummary) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.CodeSubmissions = append(s.CodeSubmissions, types.CodeSubmission{
			Code:        code,
			IsSubmit:    isSubmit,
			Passed:      summary.Passed,
			Failed:      summary.Failed,
			Results:     summary.Results,
			SubmittedAt: time.Now().Unix(),
		})
		return nil
	})
}

// LogHintRequested bumps the monotone hint counter.
func (l *SessionLog) LogHintRequested(ctx context.Context, sessionID string) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.HintsRequested++
		return nil
	})
}

// UpdateTimeRemaining records the client-reported countdown.
func (l *SessionLog) UpdateTimeRemaining(ctx context.Context, sessionID string, seconds int) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.TimeRemainingS = seconds
		return nil
	})
}

// UpdateInterviewPhase enforces the clarification -> coding -> review
// monotone transition before writing.
func (l *SessionLog) UpdateInterviewPhase(ctx context.Context, sessionID string, phase types.InterviewPhase) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		if !phase.AdvancesFrom(s.InterviewPhase) {
			return fmt.Errorf("interview phase cannot move from %s to %s", s.InterviewPhase, phase)
		}
		s.InterviewPhase = phase
		return nil
	})
}

// UpdateEditorCode records the latest editor snapshot, used to re-seed a
// resumed session's workspace.
func (l *SessionLog) UpdateEditorCode(ctx context.Context, sessionID, code string) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.LastEditorCode = code
		return nil
	})
}

// UpdateWhiteboard records the latest whiteboard/notes state.
func (l *SessionLog) UpdateWhiteboard(ctx context.Context, sessionID, state string) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.WhiteboardState = state
		return nil
	})
}

// SaveSolution appends a student-saved solution snapshot.
func (l *SessionLog) SaveSolution(ctx context.Context, sessionID, code string) error {
	return l.mutate(ctx, sessionID, func(s *types.Session) error {
		s.SavedSolutions = append(s.SavedSolutions, code)
		return nil
	})
}

// End finalizes a session: sets ended_at, computes duration_s, performs
// the last write, and evicts it from the in-memory active set.
func (l *SessionLog) End(ctx context.Context, sessionID, finalResult, notes string) error {
	err := l.mutate(ctx, sessionID, func(s *types.Session) error {
		now := time.Now().Unix()
		s.EndedAt = &now
		duration := now - s.StartedAt
		s.DurationS = &duration
		s.FinalResult = finalResult
		s.Notes = notes
		return nil
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	delete(l.active, sessionID)
	l.mu.Unlock()
	return nil
}

// Delete removes a session document entirely and evicts any in-memory copy.
func (l *SessionLog) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	l.mu.Lock()
	delete(l.active, sessionID)
	l.mu.Unlock()

	return l.store.Delete(ctx, []string{sessionID})
}

// Get returns the current document for sessionID, preferring the
// in-memory copy (if the session is active) over disk.
func (l *SessionLog) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if s, ok := l.active[sessionID]; ok {
		cp := *s
		l.mu.Unlock()
		return &cp, nil
	}
	l.mu.Unlock()

	var s types.Session
	if err := l.store.Get(ctx, []string{sessionID}, &s); err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns a summary of every session on disk, most recently started
// first.
func (l *SessionLog) List(ctx context.Context) ([]types.SessionSummary, error) {
	var summaries []types.SessionSummary
	err := l.store.Scan(ctx, nil, func(key string, data json.RawMessage) error {
		var s types.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return nil // skip unreadable entries rather than fail the whole list
		}
		summaries = append(summaries, types.SessionSummary{
			SessionID: s.SessionID,
			ProblemID: s.ProblemID,
			Mode:      s.Mode,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].StartedAt > summaries[j].StartedAt })
	return summaries, nil
}

// mutate loads the active (or on-disk) session, applies fn, and rewrites
// the whole document atomically. fn may return an error to reject an
// illegal transition (e.g. a backward interview phase) without writing.
func (l *SessionLog) mutate(ctx context.Context, sessionID string, fn func(*types.Session) error) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	l.mu.Lock()
	s, ok := l.active[sessionID]
	if !ok {
		s = &types.Session{}
		if err := l.store.Get(ctx, []string{sessionID}, s); err != nil {
			l.mu.Unlock()
			if err == storage.ErrNotFound {
				return ErrNotFound
			}
			return err
		}
		l.active[sessionID] = s
	}
	if s.EndedAt != nil {
		l.mu.Unlock()
		return ErrAlreadyEnded
	}
	if err := fn(s); err != nil {
		l.mu.Unlock()
		return err
	}
	snapshot := *s
	l.mu.Unlock()

	return l.persist(ctx, &snapshot)
}

func (l *SessionLog) persist(ctx context.Context, s *types.Session) error {
	return l.store.Put(ctx, []string{s.SessionID}, s)
}
