// Package config provides TOML configuration file loading for wakehold.
// The configuration file lives at ~/.wakehold/config.toml by default, but
// can be overridden with the --config flag. CLI flags always take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	wherrors "github.com/wakehold/wakehold/internal/errors"
)

// Config represents the wakehold configuration file structure.
type Config struct {
	// Categories are the default sleep categories to hold when none
	// are selected on the command line. Names as accepted by the CLI
	// flags: display, disk-idle, system-idle, system-on-ac,
	// system-entire, user-active.
	// Default: system-idle
	Categories []string `toml:"categories"`

	// Verbose enables informational logging.
	// Default: false
	Verbose bool `toml:"verbose"`

	// Audit records each run in the local session history database.
	// Default: true
	Audit bool `toml:"audit"`

	// AuditPath is the SQLite database for session history.
	// Default: ~/.wakehold/wakehold.db
	AuditPath string `toml:"audit_path"`

	// AuditMaxRows caps the session history; older rows are pruned.
	// Default: 1000
	AuditMaxRows int `toml:"audit_max_rows"`

	// PidPollMs is the PID watcher's probe interval in milliseconds.
	// Default: 500
	PidPollMs int `toml:"pid_poll_ms"`
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() *Config {
	return &Config{
		Categories:   []string{"system-idle"},
		Audit:        true,
		AuditMaxRows: 1000,
		PidPollMs:    500,
	}
}

// DefaultConfigPath returns the default config file location:
// ~/.wakehold/config.toml. Errors only if the home directory cannot be
// determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wakehold", "config.toml"), nil
}

// DefaultAuditPath returns the default session history location:
// ~/.wakehold/wakehold.db.
func DefaultAuditPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wakehold", "wakehold.db"), nil
}

// Load reads a TOML config file and returns a Config with defaults
// applied underneath the file's values.
//
// Behavior:
//   - If path is empty, attempts the default location and returns
//     plain defaults without error if no file exists there.
//   - If path is specified, a missing file is an error: the user asked
//     for that file, so it should exist.
//   - A file that exists but does not parse is always an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, wherrors.New(wherrors.CodeConfigLoadFailed, "config file not found: "+path)
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, wherrors.Wrap(wherrors.CodeConfigLoadFailed, "failed to parse config file "+path, err)
	}

	return cfg, nil
}
