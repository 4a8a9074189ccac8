// Package config defines the runtime configuration for
// source-console-shell: connection settings, capture timing, and the
// remote command names the completion index depends on. The exact
// listing commands are configuration rather than code so the tool can
// track different engine branches without a rebuild.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like
// "150ms" or "2s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Commands names the remote console commands issued in query mode.
type Commands struct {
	// CvarList lists every console variable (issued once at startup).
	CvarList string `yaml:"cvar_list"`
	// EntityList lists live entities as 'class' : 'entity' pairs; the
	// completion argument prefix is appended.
	EntityList string `yaml:"entity_list"`
	// EntityDump dumps one entity's state (used by --dump-ent).
	EntityDump string `yaml:"entity_dump"`
}

// Config holds every tuneable for a single session.
type Config struct {
	// Connection
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Mode           string        `yaml:"mode"`   // "tcp" or "ws"
	WSURL          string        `yaml:"ws_url"` // used when Mode == "ws"
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// Capture timing
	IdleWindow   Duration `yaml:"idle_window"`   // quiescence window
	QueryTimeout Duration `yaml:"query_timeout"` // max wait for first output line

	// Display
	Prompt           string `yaml:"prompt"`
	ContinuousOutput bool   `yaml:"continuous_output"`

	// History
	HistoryPath string `yaml:"history_path"`
	NoHistory   bool   `yaml:"no_history"`

	// Remote command names
	Commands Commands `yaml:"commands"`

	// Completion command sets. EntityCommands take an entity name as
	// first argument; ClassEntityCommands accept an entity name or a
	// class name (no native completion on the engine side for either).
	EntityCommands      []string `yaml:"entity_commands"`
	ClassEntityCommands []string `yaml:"class_entity_commands"`

	// Output (flags only, never from file)
	Verbose int  `yaml:"-"`
	Debug   bool `yaml:"-"`
}

// Default returns the configuration used when no file or flag says
// otherwise. Port 8020 matches the conventional -netconport value.
func Default() *Config {
	return &Config{
		Host:             "localhost",
		Port:             8020,
		Mode:             "tcp",
		ConnectTimeout:   Duration(3 * time.Second),
		IdleWindow:       Duration(150 * time.Millisecond),
		QueryTimeout:     Duration(2 * time.Second),
		Prompt:           "$",
		ContinuousOutput: true,
		Commands: Commands{
			CvarList:   "cvarlist",
			EntityList: "find_ent",
			EntityDump: "ent_dump",
		},
		EntityCommands:      []string{"ent_fire", "ent_dump", "ent_keyvalue"},
		ClassEntityCommands: []string{"ent_text", "ent_messages"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/source-console-shell/config.yaml
// (or the ~/.config equivalent), "" if no home can be determined.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "source-console-shell", "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error:
// the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case "tcp":
		if c.Host == "" {
			return fmt.Errorf("host must not be empty")
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("port %d out of range 1-65535", c.Port)
		}
	case "ws":
		if c.WSURL == "" {
			return fmt.Errorf("ws mode requires ws_url")
		}
	default:
		return fmt.Errorf("unknown mode %q (want tcp or ws)", c.Mode)
	}

	if c.IdleWindow <= 0 {
		return fmt.Errorf("idle_window must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}
	if c.QueryTimeout < c.IdleWindow {
		return fmt.Errorf("query_timeout %s shorter than idle_window %s", c.QueryTimeout, c.IdleWindow)
	}
	if c.Commands.CvarList == "" || c.Commands.EntityList == "" || c.Commands.EntityDump == "" {
		return fmt.Errorf("remote command names must not be empty")
	}
	return nil
}

// Addr returns the TCP dial address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
