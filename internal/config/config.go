package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is the fully-resolved server configuration: optional on-disk
// JSONC defaults, then environment variable overrides per spec §6.
type Config struct {
	Host             string   `json:"host"`
	Port             int      `json:"port"`
	Password         string   `json:"password,omitempty"`
	CorsOrigins      []string `json:"cors_origins,omitempty"`
	CatalogDir       string   `json:"catalog_dir,omitempty"`
	SandboxPython    string   `json:"sandbox_python,omitempty"`
	TutorAgentBinary string   `json:"tutor_agent_binary,omitempty"`
}

// DefaultConfig mirrors the teacher's DefaultConfig pattern: sane defaults
// before any file or environment override is applied.
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          8000,
		SandboxPython: "python3",
	}
}

// Load merges, in priority order: (1) a global config file, (2) a
// project-local config file, (3) environment variable overrides. Both file
// sources are JSONC (comments stripped via tidwall/jsonc, same approach the
// teacher's stripJSONComments regex targets, before decoding).
func Load(directory string) (*Config, error) {
	cfg := DefaultConfig()

	globalPath := filepath.Join(GetPaths().Data, "leettutor.jsonc")
	loadConfigFile(globalPath, cfg)

	if directory != "" {
		loadConfigFile(filepath.Join(directory, "leettutor.jsonc"), cfg)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file doesn't exist, skip
	}
	data = jsonc.ToJSON(data)

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}
	mergeConfig(cfg, &fileCfg)
}

func mergeConfig(target, source *Config) {
	if source.Host != "" {
		target.Host = source.Host
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.Password != "" {
		target.Password = source.Password
	}
	if len(source.CorsOrigins) > 0 {
		target.CorsOrigins = source.CorsOrigins
	}
	if source.CatalogDir != "" {
		target.CatalogDir = source.CatalogDir
	}
	if source.SandboxPython != "" {
		target.SandboxPython = source.SandboxPython
	}
	if source.TutorAgentBinary != "" {
		target.TutorAgentBinary = source.TutorAgentBinary
	}
}

// applyEnvOverrides applies the four environment variables spec §6 names,
// plus LEETTUTOR_CATALOG_DIR.
// These always win over file config, matching the teacher's precedence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEETTUTOR_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("LEETTUTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("LEETTUTOR_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("LEETTUTOR_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" && o != "*" { // spec: no wildcards
				origins = append(origins, o)
			}
		}
		cfg.CorsOrigins = origins
	}
	if v := os.Getenv("LEETTUTOR_CATALOG_DIR"); v != "" {
		cfg.CatalogDir = v
	}
}

// AuthRequired reports whether the server enforces the auth handshake.
func (c *Config) AuthRequired() bool {
	return c.Password != ""
}

// Save writes the configuration back to a JSONC-compatible (plain JSON)
// file, matching the teacher's Save helper shape.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
