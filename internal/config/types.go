package config

import (
	"errors"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process-level configuration. Per-guild settings live in the
// tenant store, not here.
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	API      APIConfig      `json:"api"`
	Log      LogConfig      `json:"log"`
	Tenants  TenantsConfig  `json:"tenants"`
	Identity IdentityConfig `json:"identity"`
	Staffup  StaffupConfig  `json:"staffup"`
	Pprof    PprofConfig    `json:"pprof"`
}

type DiscordConfig struct {
	Token         string `json:"token"`
	CommandPrefix string `json:"command_prefix"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Secret  string `json:"secret"`
}

type LogConfig struct {
	Level   string           `json:"level"`
	Console *bool            `json:"console"`
	File    LogFileConfig    `json:"file"`
	Discord LogDiscordConfig `json:"discord"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LogDiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  int64  `json:"channel_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type TenantsConfig struct {
	Path string `json:"path"`
}

type IdentityConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
}

type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Token   string `json:"token"`
}

type StaffupConfig struct {
	Enabled   bool     `json:"enabled"`
	Schedule  string   `json:"schedule"`
	Positions []string `json:"positions"`
}

// secrets are the values we never want sitting in the config file on shared
// hosts. They override the file when set.
type secrets struct {
	DiscordToken string `envconfig:"DISCORD_TOKEN"`
	APISecret    string `envconfig:"API_SECRET_KEY"`
}

func (c *Config) withDefaults() {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = "!"
	}
	if c.API.Address == "" {
		c.API.Address = "127.0.0.1:5500"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Console == nil {
		t := true
		c.Log.Console = &t
	}
	if c.Tenants.Path == "" {
		c.Tenants.Path = "data/tenants.json"
	}
	if c.Identity.Driver == "" {
		c.Identity.Driver = "file"
	}
	if c.Identity.Path == "" {
		c.Identity.Path = "data/identities"
	}
	if c.Staffup.Schedule == "" {
		c.Staffup.Schedule = "@every 1m"
	}
	if c.Pprof.Address == "" {
		c.Pprof.Address = "127.0.0.1:6060"
	}
}

func (c *Config) applyEnv() error {
	var s secrets
	if err := envconfig.Process("", &s); err != nil {
		return err
	}
	if v := strings.TrimSpace(s.DiscordToken); v != "" {
		c.Discord.Token = v
	}
	if v := strings.TrimSpace(s.APISecret); v != "" {
		c.API.Secret = v
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return errors.New("discord.token is required (config file or DISCORD_TOKEN)")
	}
	if c.API.Enabled && strings.TrimSpace(c.API.Secret) == "" {
		return errors.New("api.secret is required when the API is enabled (config file or API_SECRET_KEY)")
	}
	return nil
}
