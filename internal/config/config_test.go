package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARK_MOCK", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "data/stories.json", cfg.Store.File)
	assert.Equal(t, "doubao-seedream-4.0", cfg.Ark.ImageModel)
	assert.Equal(t, time.Duration(0), cfg.Ark.Timeout())
	assert.Equal(t, "https://picsum.photos/800/600", cfg.Image.PlaceholderBaseURL)
	assert.True(t, cfg.Ark.Mock)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARK_API_KEY", "secret")
	t.Setenv("ARK_TIMEOUT_SEC", "90")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,https://stories.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Ark.Timeout())
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.Equal(t, []string{"http://localhost:5173", "https://stories.example.com"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]map[string]string{
		"no credentials":   {"ARK_API_KEY": "", "ARK_MOCK": "false"},
		"unknown backend":  {"ARK_MOCK": "true", "STORE_BACKEND": "s3"},
		"negative timeout": {"ARK_MOCK": "true", "ARK_TIMEOUT_SEC": "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	})

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	closer, err := InitLogger(LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.FileExists(t, path)

	_, err = InitLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
