// Package config loads the bot's YAML configuration and resolves the state
// directory where the session and tag database live.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazbot/chaz/internal/backend"
	"github.com/chazbot/chaz/internal/role"
)

// Config is the user-provided configuration file.
type Config struct {
	HomeserverURL string `yaml:"homeserver_url"`
	Username      string `yaml:"username"`
	// Password is optional; when empty it is asked for on first login.
	Password string `yaml:"password"`

	// AllowList is a regex over user IDs. Only matching users get
	// responses and can invite the bot. Empty means nobody.
	AllowList string `yaml:"allow_list"`

	// MessageLimit caps responses per sender. 0 = unlimited.
	MessageLimit uint64 `yaml:"message_limit"`
	// RoomSizeLimit caps the room size the bot responds in. 0 = unlimited.
	RoomSizeLimit int `yaml:"room_size_limit"`

	// StateDir overrides the XDG state directory.
	StateDir string `yaml:"state_dir"`
	// DBPathOverride places the tag database outside the state directory.
	DBPathOverride string `yaml:"db_path"`

	// AichatConfigDir is passed to the aichat fallback backend.
	AichatConfigDir string `yaml:"aichat_config_dir"`

	// ChatSummaryModel overrides the model used for rename summaries.
	ChatSummaryModel string `yaml:"chat_summary_model"`

	// Role names the persona to use by default.
	Role string `yaml:"role"`
	// Roles are user-defined personas, searched before the built-ins.
	Roles []role.Details `yaml:"roles"`

	// DisableMediaContext skips pulling room images into prompts.
	DisableMediaContext bool `yaml:"disable_media_context"`

	Backends []backend.Backend `yaml:"backends"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.HomeserverURL == "" {
		return nil, fmt.Errorf("config %s: homeserver_url is required", path)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("config %s: username is required", path)
	}
	for i := range cfg.Backends {
		switch cfg.Backends[i].Kind {
		case backend.KindAIChat, backend.KindOpenAICompatible:
		default:
			return nil, fmt.Errorf("config %s: backend %d has unknown type %q",
				path, i, cfg.Backends[i].Kind)
		}
	}
	return &cfg, nil
}

// AllowListRegexp compiles the allow list. An empty pattern returns nil,
// which admits nobody.
func (c *Config) AllowListRegexp() (*regexp.Regexp, error) {
	if c.AllowList == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.AllowList)
	if err != nil {
		return nil, fmt.Errorf("invalid allow_list pattern: %w", err)
	}
	return re, nil
}

// ResolveStateDir returns the directory for persistent state, preferring the
// configured value and falling back to $XDG_STATE_HOME/chaz.
func (c *Config) ResolveStateDir() (string, error) {
	dir := c.StateDir
	if dir == "" {
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			return filepath.Join(xdg, "chaz"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, ".local", "state", "chaz"), nil
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir[1:], "/"))
	}
	return dir, nil
}

// DBPath returns the tag database path: the configured override, or
// tags.db under the state directory.
func (c *Config) DBPath() (string, error) {
	if c.DBPathOverride != "" {
		return c.DBPathOverride, nil
	}
	dir, err := c.ResolveStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tags.db"), nil
}

// SessionFile returns the session file path under the state directory.
func (c *Config) SessionFile() (string, error) {
	dir, err := c.ResolveStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}
