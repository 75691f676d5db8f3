package config

import (
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendSQLite)
	}
	if cfg.Store.SQLitePath != "data/roster.db" {
		t.Errorf("Store.SQLitePath = %q", cfg.Store.SQLitePath)
	}
	if cfg.Store.Locking {
		t.Error("Store.Locking should default to false")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ROSTER_STORE_BACKEND", "redis")
	t.Setenv("ROSTER_STORE_REDIS_DB", "3")
	t.Setenv("ROSTER_STORE_LOCKING", "true")
	t.Setenv("ROSTER_TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("ROSTER_DEV_RESET", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.RedisDB != 3 || !cfg.Store.Locking {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Telegram.ChatID != "-1001" {
		t.Errorf("Telegram.ChatID = %q", cfg.Telegram.ChatID)
	}
	if !cfg.DevReset {
		t.Error("DevReset = false, want true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr bool
	}{
		{name: "memory", store: StoreConfig{Backend: BackendMemory}},
		{name: "sqlite", store: StoreConfig{Backend: BackendSQLite, SQLitePath: "x.db"}},
		{name: "sqlite without path", store: StoreConfig{Backend: BackendSQLite}, wantErr: true},
		{name: "redis without addr", store: StoreConfig{Backend: BackendRedis}, wantErr: true},
		{name: "unknown", store: StoreConfig{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Store: tt.store}).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
