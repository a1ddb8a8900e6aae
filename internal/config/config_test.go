package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quality != 720 {
		t.Errorf("Quality = %d, want default 720", cfg.Quality)
	}
	if len(cfg.InvidiousInstances) == 0 {
		t.Error("default invidious instances missing")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
quality = 480

[relay]
primary = "https://relay.example"
enable_secondary = false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quality != 480 {
		t.Errorf("Quality = %d, want 480", cfg.Quality)
	}
	if cfg.Relay.Primary != "https://relay.example" {
		t.Errorf("Relay.Primary = %q", cfg.Relay.Primary)
	}
	if cfg.Relay.EnableSecondary {
		t.Error("EnableSecondary = true, want file value false")
	}
	// Untouched keys keep their defaults.
	if cfg.InstagramMirror != "www.vxinstagram.com" {
		t.Errorf("InstagramMirror = %q, want default preserved", cfg.InstagramMirror)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STREAMSIFT_RELAY_KEY", "from-env")
	t.Setenv("STREAMSIFT_RELAY_PRIMARY", "https://env.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.Key != "from-env" {
		t.Errorf("Relay.Key = %q, want env override", cfg.Relay.Key)
	}
	if cfg.Relay.Primary != "https://env.example" {
		t.Errorf("Relay.Primary = %q, want env override", cfg.Relay.Primary)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("quality = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed TOML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad quality", func(c *Config) { c.Quality = 600 }, "unsupported quality"},
		{"empty primary", func(c *Config) { c.Relay.Primary = "" }, "relay.primary"},
		{"no invidious", func(c *Config) { c.InvidiousInstances = nil }, "invidious"},
		{"no resolvers", func(c *Config) { c.ResolverInstances = nil }, "resolver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
