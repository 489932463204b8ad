package tui

import (
	"time"

	"github.com/charmbracelet/log"
)

type TaskFieldConfig struct {
	ShowPriority    bool
	ShowDescription bool
}

type Option func(*Model)

func DefaultTaskFieldConfig() TaskFieldConfig {
	return TaskFieldConfig{
		ShowPriority:    true,
		ShowDescription: false,
	}
}

func WithTaskFieldConfig(cfg TaskFieldConfig) Option {
	return func(m *Model) {
		m.taskFields = cfg
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithClipboard replaces the function used by the yank key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithSyncTimeout bounds each background load and commit.
func WithSyncTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.syncTimeout = d
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}
