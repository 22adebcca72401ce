package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pondside/heartbeat/internal/logger"
)

// Config is the top-level TOML structure.
//
// Example:
//
//	home = "/home/alex/agent-home"
//	schedule = "0,20,40 22-23,0-4 * * *"
//
//	[agent]
//	command = "/usr/local/bin/claude"
//	args = ["--print"]
//	sessions = true
//
//	[paths]
//	secrets = ".env"
//	heartbeat_log = "logs/heartbeat.log"
type Config struct {
	// Home is the agent's home directory; relative paths below resolve
	// against it and the agent process starts there.
	Home string `mapstructure:"home"`
	// Schedule is a cron expression for daemon mode. It is handed to the cron
	// library verbatim; this tool does not interpret the window itself.
	Schedule string `mapstructure:"schedule"`
	// LastSchedule optionally fires a closing "last breath" tick.
	LastSchedule string `mapstructure:"last_schedule"`

	Agent   Agent         `mapstructure:"agent"`
	Paths   Paths         `mapstructure:"paths"`
	Log     logger.Config `mapstructure:"log"`
	History History       `mapstructure:"history"`
	Server  Server        `mapstructure:"server"`
}

type Agent struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	// Sessions enables session continuity in daemon mode: the first tick of a
	// session passes a fresh session id, later ticks resume it.
	Sessions bool `mapstructure:"sessions"`
}

type Paths struct {
	Marker       string `mapstructure:"marker"`
	HeartbeatLog string `mapstructure:"heartbeat_log"`
	Secrets      string `mapstructure:"secrets"`
	FirstBreath  string `mapstructure:"first_breath"`
	LastBreath   string `mapstructure:"last_breath"`
}

type History struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type Server struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load reads a TOML config file and applies defaults. When path is empty the
// usual locations are searched: ./heartbeat.toml, then
// $HOME/.config/heartbeat/heartbeat.toml.
func Load(path string) (Config, error) {
	if path == "" {
		var err error
		path, err = findConfig()
		if err != nil {
			return Config{}, err
		}
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func findConfig() (string, error) {
	candidates := []string{"heartbeat.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "heartbeat", "heartbeat.toml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no heartbeat.toml config file found")
}

func (c *Config) applyDefaults() {
	if c.Agent.Command == "" {
		c.Agent.Command = "claude"
	}
	if c.Agent.Args == nil {
		c.Agent.Args = []string{"--print"}
	}
	if c.Schedule == "" {
		c.Schedule = "@every 20m"
	}
	if c.Paths.Marker == "" {
		c.Paths.Marker = "heartbeat.pid"
	}
	if c.Paths.HeartbeatLog == "" {
		c.Paths.HeartbeatLog = filepath.Join("logs", "heartbeat.log")
	}
	if c.Paths.Secrets == "" {
		c.Paths.Secrets = ".env"
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join("logs", "heartbeat.db")
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:9464"
	}
	if c.Log.Path == "" && c.Home != "" {
		c.Log.Path = filepath.Join(c.Home, "logs", "heartbeat-tool.log")
	}

	c.Paths.Marker = c.resolve(c.Paths.Marker)
	c.Paths.HeartbeatLog = c.resolve(c.Paths.HeartbeatLog)
	c.Paths.Secrets = c.resolve(c.Paths.Secrets)
	c.Paths.FirstBreath = c.resolve(c.Paths.FirstBreath)
	c.Paths.LastBreath = c.resolve(c.Paths.LastBreath)
	c.History.Path = c.resolve(c.History.Path)
}

// resolve anchors a relative path at the agent home.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

func (c *Config) validate() error {
	if c.Home == "" {
		return errors.New("config: home is required")
	}
	if st, err := os.Stat(c.Home); err != nil {
		return fmt.Errorf("config: home: %w", err)
	} else if !st.IsDir() {
		return fmt.Errorf("config: home %s is not a directory", c.Home)
	}
	return nil
}
