package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"MM_DB_HOST":     "localhost",
		"MM_DB_NAME":     "mediastore",
		"MM_DB_USER":     "mediastore",
		"MM_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, ожидается localhost", cfg.DBHost)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидается 10", cfg.DBMaxConns)
	}
	if cfg.DBConnMaxLifetime != 30*time.Minute {
		t.Errorf("DBConnMaxLifetime = %v, ожидается 30m", cfg.DBConnMaxLifetime)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, ожидается 1000", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 5m", cfg.CacheTTL)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "MM_DB_HOST")
	setEnvs(t, envs)
	t.Setenv("MM_DB_HOST", "")

	if _, err := Load(); err == nil {
		t.Error("Load() без MM_DB_HOST должен вернуть ошибку")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("MM_LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil {
		t.Error("Load() с недопустимым MM_LOG_LEVEL должен вернуть ошибку")
	}
}

func TestLoad_InvalidDBMaxConns(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("MM_DB_MAX_CONNS", "0")

	if _, err := Load(); err == nil {
		t.Error("Load() с MM_DB_MAX_CONNS=0 должен вернуть ошибку")
	}
}

func TestLoad_InvalidCacheSize(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("MM_CACHE_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Error("Load() с MM_CACHE_SIZE=0 должен вернуть ошибку")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("MM_PORT", "9090")
	t.Setenv("MM_LOG_FORMAT", "text")
	t.Setenv("MM_CACHE_TTL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, ожидается 30s", cfg.CacheTTL)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.local",
		DBPort:     5433,
		DBName:     "mediastore",
		DBUser:     "ms",
		DBPassword: "pw",
		DBSSLMode:  "require",
	}

	want := "host=db.local port=5433 dbname=mediastore user=ms password=pw sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}
