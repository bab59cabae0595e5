package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "missing account name",
			mutate:  func(c *Config) { c.Account.Name = "" },
			wantErr: "Name",
		},
		{
			name:    "missing filesystem",
			mutate:  func(c *Config) { c.Account.FileSystem = "" },
			wantErr: "FileSystem",
		},
		{
			name:    "unknown store type",
			mutate:  func(c *Config) { c.Store.Type = "s3" },
			wantErr: "Type",
		},
		{
			name:    "negative buffer size",
			mutate:  func(c *Config) { c.FileSystem.ReadBufferSize = -1 },
			wantErr: "ReadBufferSize",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Transport.Timeout = -1 },
			wantErr: "Timeout",
		},
		{
			name:    "burst without rate",
			mutate:  func(c *Config) { c.Transport.Burst = 10 },
			wantErr: "transport.burst",
		},
		{
			name:    "badger without dir",
			mutate:  func(c *Config) { c.Store.Type = "badger" },
			wantErr: "store.badger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		if err := Validate(cfg); err != nil {
			t.Errorf("Level %q should be valid, got: %v", level, err)
		}
	}
}

func TestValidate_BadgerInMemory(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "badger"
	cfg.Store.Badger = map[string]any{"in_memory": true}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected in-memory badger to be valid, got: %v", err)
	}
}
