package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServicePort != "8080" {
		t.Errorf("ServicePort = %q, want 8080", cfg.ServicePort)
	}
	if cfg.SyncTotalFiles != 25 {
		t.Errorf("SyncTotalFiles = %d, want 25", cfg.SyncTotalFiles)
	}
	if cfg.JobTickInterval != time.Second {
		t.Errorf("JobTickInterval = %v, want 1s", cfg.JobTickInterval)
	}
	if cfg.SweepEvery != time.Minute {
		t.Errorf("SweepEvery = %v, want 1m", cfg.SweepEvery)
	}
	if cfg.FolderStore != "memory" || cfg.ObjectStore != "none" || cfg.CacheBackend != "memory" {
		t.Errorf("unexpected backends: %s/%s/%s", cfg.FolderStore, cfg.ObjectStore, cfg.CacheBackend)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVICE_PORT", "9999")
	t.Setenv("JOB_TICK_INTERVAL", "250ms")
	t.Setenv("JOB_STEP_MAX", "12.5")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServicePort != "9999" {
		t.Errorf("ServicePort = %q", cfg.ServicePort)
	}
	if cfg.JobTickInterval != 250*time.Millisecond {
		t.Errorf("JobTickInterval = %v", cfg.JobTickInterval)
	}
	if cfg.JobStepMax != 12.5 {
		t.Errorf("JobStepMax = %v", cfg.JobStepMax)
	}
	if !cfg.MinIOUseSSL {
		t.Error("MinIOUseSSL should be true")
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("FOLDER_STORE", "postgres")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown folder store")
	}
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("SYNC_TOTAL_FILES", "lots")
	t.Setenv("SYNC_TICK_INTERVAL", "soon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SyncTotalFiles != 25 {
		t.Errorf("SyncTotalFiles = %d, want default", cfg.SyncTotalFiles)
	}
	if cfg.SyncTickInterval != 2*time.Second {
		t.Errorf("SyncTickInterval = %v, want default", cfg.SyncTickInterval)
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{TiDBUser: "u", TiDBPassword: "p", TiDBHost: "h", TiDBPort: "1", TiDBDatabase: "d"}
	want := "u:p@tcp(h:1)/d?charset=utf8mb4&parseTime=True&loc=Local"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN = %q, want %q", got, want)
	}
}
