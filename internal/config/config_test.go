package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, "UTC", cfg.OrgTimezone)
	assert.True(t, cfg.DBInstrumented)
	assert.Equal(t, "postgres://user:password@db:5432/attendance_db?sslmode=disable", cfg.DSN())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("IS_LOCAL_DEV", "true")
	t.Setenv("ORG_TIMEZONE", "Asia/Kolkata")
	t.Setenv("WORKER_CONCURRENCY", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "Asia/Kolkata", cfg.OrgTimezone)
	assert.Equal(t, 12, cfg.WorkerConcurrency)
	assert.Equal(t, localDevJWTSecret, cfg.JWTSecret)
}

func TestValidate(t *testing.T) {
	base := Config{StoreDriver: StoreDriverMemory, JWTSecret: "x", WorkerConcurrency: 1}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"no workers", func(c *Config) { c.WorkerConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
