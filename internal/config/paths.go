// Package config provides server configuration loading and on-disk path
// management for LeetTutor.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard on-disk layout described in spec §6:
// sessions/<id>.json, workspace/<id>/, and a catalog directory of
// per-problem JSON files.
type Paths struct {
	Data     string // base data directory
	Sessions string // <Data>/sessions
	Workspace string // <Data>/workspace
	Catalog  string // problem catalog directory
}

// GetPaths returns the standard paths for LeetTutor data, honoring
// XDG_DATA_HOME the same way the teacher repo does for its own data dir.
func GetPaths() *Paths {
	base := filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "leettutor")
	return &Paths{
		Data:      base,
		Sessions:  filepath.Join(base, "sessions"),
		Workspace: filepath.Join(base, "workspace"),
		Catalog:   getEnvOrDefault("LEETTUTOR_CATALOG_DIR", filepath.Join(base, "catalog")),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Sessions, p.Workspace} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}
