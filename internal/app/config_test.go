package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/florianilch/cardboard/internal/tokenstore"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{File: "/tmp/session.json"}}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.Type != TokenStorageTypeFile {
		t.Errorf("Storage.Type = %q, want file", cfg.Storage.Type)
	}
	if cfg.Storage.File != "/tmp/session.json" {
		t.Errorf("Storage.File overwritten: %q", cfg.Storage.File)
	}
	if cfg.API.Timeout != DefaultConfigAPITimeout || cfg.Session.RefreshLeeway != DefaultConfigRefreshLeeway {
		t.Errorf("durations not defaulted: %+v %+v", cfg.API, cfg.Session)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"login url", func(c *Config) { c.Login.URL = "https://cardboard.ink/oauth/authorize" }, false},
		{"bad login url", func(c *Config) { c.Login.URL = "cardboard" }, true},
		{"relative callback path", func(c *Config) { c.Login.Callback.Path = "callback" }, true},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, true},
		{"env without key", func(c *Config) { c.Storage.Type = TokenStorageTypeEnv }, true},
		{"env with key", func(c *Config) { c.Storage.Type, c.Storage.EnvKey = TokenStorageTypeEnv, "SESSION" }, false},
		{"keyring without user", func(c *Config) { c.Storage.Type = TokenStorageTypeKeyring }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "floppy" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Storage: StorageConfig{File: filepath.Join(t.TempDir(), "session.json")}}
			if err := cfg.ApplyDefaults(); err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginRedirect(t *testing.T) {
	l := LoginConfig{Callback: CallbackConfig{Host: "127.0.0.1", Port: 8765, Path: "/callback"}}
	if got, want := l.Redirect(), "http://127.0.0.1:8765/callback"; got != want {
		t.Errorf("Redirect() = %q, want %q", got, want)
	}

	l.RedirectURL = "https://example.com/cb"
	if got := l.Redirect(); got != "https://example.com/cb" {
		t.Errorf("Redirect() = %q, want override", got)
	}
}

func TestNewStore(t *testing.T) {
	s := StorageConfig{Type: TokenStorageTypeFile, File: filepath.Join(t.TempDir(), "session.json")}
	store, err := s.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*tokenstore.FileStore); !ok {
		t.Errorf("NewStore() = %T, want *tokenstore.FileStore", store)
	}

	s = StorageConfig{Type: TokenStorageTypeEnv, EnvKey: "SESSION"}
	store, err = s.NewStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*tokenstore.EnvStore); !ok {
		t.Errorf("NewStore() = %T, want *tokenstore.EnvStore", store)
	}

	s = StorageConfig{Type: "floppy"}
	if _, err := s.NewStore(); err == nil {
		t.Error("expected error for unknown storage type")
	}
}
