package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/qboard.db")
	if cfg.Server.DBPath != "/tmp/qboard.db" {
		t.Fatalf("unexpected db path %q", cfg.Server.DBPath)
	}
	if cfg.API.BaseURL != DefaultAPIBaseURL {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Board.PrioritySort {
		t.Fatal("expected priority sort disabled by default")
	}
	if len(cfg.Board.Columns) != 4 || cfg.Board.Columns[0].Name != "To Do" {
		t.Fatalf("unexpected default columns %+v", cfg.Board.Columns)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/qboard.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.DBPath != defaults.Server.DBPath {
		t.Fatalf("expected default db path, got %q", cfg.Server.DBPath)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[api]
base_url = "https://boards.example.com/api"
token = "abc"
timeout = "30s"

[board]
project_id = "42"
priority_sort = true

[[board.columns]]
name = "Backlog"
color = "blue"

[[board.columns]]
name = "Shipped"

[server]
db_path = "/custom/qboard.db"

[keys]
grab = "g"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://boards.example.com/api" || cfg.API.Token != "abc" {
		t.Fatalf("unexpected api config %+v", cfg.API)
	}
	if timeout, err := cfg.APITimeout(); err != nil || timeout != 30*time.Second {
		t.Fatalf("APITimeout() = %s, %v", timeout, err)
	}
	if cfg.Board.ProjectID != "42" || !cfg.Board.PrioritySort {
		t.Fatalf("unexpected board config %+v", cfg.Board)
	}
	if len(cfg.Board.Columns) != 2 || cfg.Board.Columns[1].Color != "" {
		t.Fatalf("unexpected columns %+v", cfg.Board.Columns)
	}
	if cfg.Server.DBPath != "/custom/qboard.db" || cfg.Server.Bind != "127.0.0.1:8080" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Keys.Grab != "g" || cfg.Keys.Drop != "enter" {
		t.Fatalf("unexpected keys %+v", cfg.Keys)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad scheme":      "[api]\nbase_url = \"ftp://x\"\n",
		"bad timeout":     "[api]\ntimeout = \"soon\"\n",
		"bad level":       "[logging]\nlevel = \"loud\"\n",
		"bad color":       "[[board.columns]]\nname = \"A\"\ncolor = \"teal\"\n",
		"blank column":    "[[board.columns]]\nname = \" \"\n",
		"duplicate key":   "[keys]\ngrab = \"enter\"\n",
		"empty key":       "[keys]\nyank = \"\"\n",
		"duplicate names": "[[board.columns]]\nname = \"A\"\n[[board.columns]]\nname = \"a\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QBOARD_API_BASE_URL", "https://env.example.com/api")
	t.Setenv("QBOARD_API_TOKEN", "env-token")
	t.Setenv("QBOARD_LOG_LEVEL", "debug")
	t.Setenv("QBOARD_BOARD_PRIORITY_SORT", "true")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	cfg, err := Default("/tmp/qboard.db").ApplyEnv(env)
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com/api" || cfg.API.Token != "env-token" {
		t.Fatalf("unexpected api config %+v", cfg.API)
	}
	if cfg.Logging.Level != "debug" || !cfg.Board.PrioritySort {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Logging, cfg.Board)
	}
	if cfg.Server.DBPath != "/tmp/qboard.db" {
		t.Fatalf("unset override changed db path to %q", cfg.Server.DBPath)
	}
}

func TestApplyEnvRejectsInvalidOverride(t *testing.T) {
	if _, err := Default("/tmp/qboard.db").ApplyEnv(EnvOverrides{LogLevel: "chatty"}); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
