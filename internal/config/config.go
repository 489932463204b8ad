package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/qboard/internal/domain"
	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
)

// envPrefix namespaces environment overrides.
const envPrefix = "QBOARD"

// DefaultAPIBaseURL is the remote API root used when nothing else is configured.
const DefaultAPIBaseURL = "http://localhost:8080/api"

type Config struct {
	API     APIConfig     `toml:"api"`
	Board   BoardConfig   `toml:"board"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Keys    KeyConfig     `toml:"keys"`
}

type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	Timeout string `toml:"timeout"`
}

type BoardConfig struct {
	ProjectID       string         `toml:"project_id"`
	PrioritySort    bool           `toml:"priority_sort"`
	ShowPriority    bool           `toml:"show_priority"`
	ShowDescription bool           `toml:"show_description"`
	Columns         []ColumnConfig `toml:"columns"` // seeds for new projects
}

type ColumnConfig struct {
	Name  string `toml:"name"`
	Color string `toml:"color"`
}

type ServerConfig struct {
	Bind           string   `toml:"bind"`
	Endpoint       string   `toml:"endpoint"`
	MCPEndpoint    string   `toml:"mcp_endpoint"`
	DBPath         string   `toml:"db_path"`
	Token          string   `toml:"token"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type KeyConfig struct {
	Grab         string `toml:"grab"`
	GrabColumn   string `toml:"grab_column"`
	Drop         string `toml:"drop"`
	Cancel       string `toml:"cancel"`
	PrioritySort string `toml:"priority_sort"`
	Reload       string `toml:"reload"`
	Detail       string `toml:"detail"`
	Yank         string `toml:"yank"`
}

// EnvOverrides holds values read from QBOARD_* environment variables.
type EnvOverrides struct {
	APIBaseURL   string `envconfig:"API_BASE_URL"`
	APIToken     string `envconfig:"API_TOKEN"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	DBPath       string `envconfig:"DB_PATH"`
	ProjectID    string `envconfig:"BOARD_PROJECT_ID"`
	PrioritySort *bool  `envconfig:"BOARD_PRIORITY_SORT"`
}

func defaultColumns() []ColumnConfig {
	return []ColumnConfig{
		{Name: "To Do", Color: string(domain.ColorSlate)},
		{Name: "In Progress", Color: string(domain.ColorAmber)},
		{Name: "In Review", Color: string(domain.ColorPurple)},
		{Name: "Done", Color: string(domain.ColorGreen)},
	}
}

func Default(dbPath string) Config {
	return Config{
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
			Timeout: "15s",
		},
		Board: BoardConfig{
			ShowPriority:    true,
			ShowDescription: false,
			Columns:         defaultColumns(),
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			Endpoint:    "/api",
			MCPEndpoint: "/mcp",
			DBPath:      dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".qboard/log",
			},
		},
		Keys: KeyConfig{
			Grab:         "space",
			GrabColumn:   "m",
			Drop:         "enter",
			Cancel:       "esc",
			PrioritySort: "p",
			Reload:       "r",
			Detail:       "i",
			Yank:         "y",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// Column seeds replace the defaults wholesale when the file lists any.
	cfg.Board.Columns = nil
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if len(cfg.Board.Columns) == 0 {
		cfg.Board.Columns = defaults.Board.Columns
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadEnv reads QBOARD_* overrides from the process environment.
func LoadEnv() (EnvOverrides, error) {
	var env EnvOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return EnvOverrides{}, fmt.Errorf("load env: %w", err)
	}
	return env, nil
}

// ApplyEnv overlays non-empty environment overrides and revalidates.
func (c Config) ApplyEnv(env EnvOverrides) (Config, error) {
	if v := strings.TrimSpace(env.APIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(env.APIToken); v != "" {
		c.API.Token = v
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(env.DBPath); v != "" {
		c.Server.DBPath = v
	}
	if v := strings.TrimSpace(env.ProjectID); v != "" {
		c.Board.ProjectID = v
	}
	if env.PrioritySort != nil {
		c.Board.PrioritySort = *env.PrioritySort
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	base, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
	}
	if _, err := c.APITimeout(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Server.DBPath) == "" {
		return errors.New("server.db_path is required")
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	seenColumn := map[string]struct{}{}
	for idx, column := range c.Board.Columns {
		name := strings.TrimSpace(column.Name)
		if name == "" {
			return fmt.Errorf("board.columns[%d].name is required", idx)
		}
		if _, err := domain.NormalizeColumnColor(domain.ColumnColor(column.Color)); err != nil {
			return fmt.Errorf("board.columns[%d].color: %w", idx, err)
		}
		key := strings.ToLower(name)
		if _, ok := seenColumn[key]; ok {
			return fmt.Errorf("board.columns[%d].name is duplicated: %s", idx, name)
		}
		seenColumn[key] = struct{}{}
	}

	bindings := map[string]string{
		"grab":          c.Keys.Grab,
		"grab_column":   c.Keys.GrabColumn,
		"drop":          c.Keys.Drop,
		"cancel":        c.Keys.Cancel,
		"priority_sort": c.Keys.PrioritySort,
		"reload":        c.Keys.Reload,
		"detail":        c.Keys.Detail,
		"yank":          c.Keys.Yank,
	}
	seenKey := map[string]string{}
	for _, action := range []string{"grab", "grab_column", "drop", "cancel", "priority_sort", "reload", "detail", "yank"} {
		key := strings.TrimSpace(bindings[action])
		if key == "" {
			return fmt.Errorf("keys.%s is required", action)
		}
		if other, ok := seenKey[key]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s (%q)", action, other, key)
		}
		seenKey[key] = action
	}

	return nil
}

// APITimeout parses api.timeout. An empty value means no client timeout override.
func (c Config) APITimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.API.Timeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid api.timeout: %q", c.API.Timeout)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
