package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/droidbuild/internal/extcmd"
)

// Config holds everything an App needs to run a build.
type Config struct {
	ProjectDir string
	// Overrides are property values set on the command line.
	Overrides map[string]string
	FailFast  bool

	LogFormat  string
	LogLevel   string
	StatusPort int

	// Executor replaces real process execution; nil runs the SDK tools.
	Executor extcmd.Executor
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, errors.New("status-port must be between 0 and 65535")
	}
	return &cfg, nil
}
