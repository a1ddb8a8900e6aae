// Package config handles TOML-based configuration loading with environment
// overrides for relay credentials. Config is read-only for the resolution
// pipeline: nothing in this repository ever writes it back.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Relay holds the CORS-relay endpoint configuration. The endpoint chain is
// rebuilt from these values on every call, so edits take effect without
// restarting anything that holds a relay client.
type Relay struct {
	// Primary is a mirror-get service that wraps responses in a
	// {contents, status} JSON envelope and exposes a /raw passthrough.
	Primary string `toml:"primary"`
	// Passthrough proxies the body through unchanged.
	Passthrough string `toml:"passthrough"`
	// Secondary endpoints are only consulted when EnableSecondary is set.
	// The original product shipped this as a user toggle with no documented
	// default rationale; it stays an explicit knob here, on by default.
	Secondary       []string `toml:"secondary"`
	EnableSecondary bool     `toml:"enable_secondary"`
	// Key is appended to endpoints that take an API key. Usually supplied
	// via STREAMSIFT_RELAY_KEY rather than the config file.
	Key string `toml:"key"`
}

// Config holds all application configuration.
type Config struct {
	Quality            int      `toml:"quality"`
	Relay              Relay    `toml:"relay"`
	InvidiousInstances []string `toml:"invidious_instances"`
	ResolverInstances  []string `toml:"resolver_instances"`
	InstagramMirror    string   `toml:"instagram_mirror"`
	MetadataAPI        string   `toml:"metadata_api"`
	SandboxBundleURL   string   `toml:"sandbox_bundle_url"`
	DataDir            string   `toml:"data_dir"`
	Debug              bool     `toml:"debug"`
}

// envOverrides are applied on top of the TOML file. Only secrets and
// endpoint overrides belong here.
type envOverrides struct {
	RelayKey     string `envconfig:"RELAY_KEY"`
	RelayPrimary string `envconfig:"RELAY_PRIMARY"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Quality: 720,
		Relay: Relay{
			Primary:     "https://api.allorigins.win",
			Passthrough: "https://corsproxy.io",
			Secondary: []string{
				"https://api.codetabs.com/v1/proxy?quest=",
				"https://thingproxy.freeboard.io/fetch/",
			},
			EnableSecondary: true,
		},
		InvidiousInstances: []string{
			"https://inv.nadeko.net",
			"https://invidious.privacydev.net",
			"https://yt.artemislena.eu",
			"https://invidious.flokinet.to",
			"https://iv.melmac.space",
			"https://invidious.nerdvpn.de",
		},
		ResolverInstances: []string{
			"https://api.cobalt.tools",
			"https://cobalt.api.timelessnesses.me",
			"https://cobalt.catto.zip",
			"https://co.wuk.sh",
		},
		InstagramMirror: "www.vxinstagram.com",
		MetadataAPI:     "https://api.microlink.io",
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "streamsift", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "streamsift", "config.toml"), nil
}

// Load reads the config file at path (or the default location when path is
// empty), merges it over defaults, and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var env envOverrides
	if err := envconfig.Process("streamsift", &env); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}
	if env.RelayKey != "" {
		cfg.Relay.Key = env.RelayKey
	}
	if env.RelayPrimary != "" {
		cfg.Relay.Primary = env.RelayPrimary
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	switch c.Quality {
	case 360, 480, 720, 1080:
	default:
		return fmt.Errorf("unsupported quality %d (valid: 360, 480, 720, 1080)", c.Quality)
	}
	if c.Relay.Primary == "" {
		return fmt.Errorf("relay.primary must not be empty")
	}
	if len(c.InvidiousInstances) == 0 {
		return fmt.Errorf("at least one invidious instance is required")
	}
	if len(c.ResolverInstances) == 0 {
		return fmt.Errorf("at least one resolver instance is required")
	}
	return nil
}
