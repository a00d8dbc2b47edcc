package config

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadServer(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(ServerConfig) bool
	}{
		{
			name: "postgres defaults",
			env:  map[string]string{"POSTGRES_DSN": "postgres://localhost:5432/galaxy?sslmode=disable"},
			check: func(c ServerConfig) bool {
				return c.HTTPAddr == ":8080" && c.StoreDriver == StoreDriverPostgres && !c.AutoMigrate &&
					!c.PushEnabled && c.PushWorkers == 2 && c.PushRetryMax == 3 && c.PushRetryBaseMS == 500
			},
		},
		{
			name:    "postgres without dsn",
			env:     map[string]string{"POSTGRES_DSN": ""},
			wantErr: true,
		},
		{
			name: "sqlite needs no dsn",
			env:  map[string]string{"POSTGRES_DSN": "", "STORE_DRIVER": " SQLite ", "SQLITE_PATH": "/tmp/x.sqlite"},
			check: func(c ServerConfig) bool {
				return c.StoreDriver == StoreDriverSQLite && c.SQLitePath == "/tmp/x.sqlite"
			},
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"STORE_DRIVER": "mongo"},
			wantErr: true,
		},
		{
			name: "push and migrate overrides",
			env: map[string]string{
				"STORE_DRIVER": "memory", "PUSH_ENABLED": "true", "PUSH_WORKERS": "4",
				"POSTGRES_AUTO_MIGRATE": "true", "ADMIN_API_KEY": "k",
			},
			check: func(c ServerConfig) bool {
				return c.PushEnabled && c.PushWorkers == 4 && c.AutoMigrate && c.AdminAPIKey == "k"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadServer()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadServer() error = %v", err)
			}
			if !tt.check(cfg) {
				t.Fatalf("unexpected config: %+v", cfg)
			}
		})
	}
}

func TestLoadAppJoinsSectionErrors(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := LoadApp()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrPostgresDSNRequired) {
		t.Fatalf("server error not wrapped: %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "log:") || !strings.Contains(msg, "server:") {
		t.Fatalf("expected both sections in %q", msg)
	}
}
