package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Pricing.Interval)
	assert.Equal(t, 30*time.Second, cfg.Trading.MaxPriceAge)
	assert.Equal(t, 10000, cfg.Trading.DefaultPageSize)
	require.Len(t, cfg.Feeds.Sources, 2)
	assert.Equal(t, FeedBinance, cfg.Feeds.Sources[0].Name)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: "9090"
storage:
  driver: memory
pricing:
  interval: 2s
trading:
  max_price_age: 45s
feeds:
  sources:
    - name: HUOBI
      base_url: http://localhost:1
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("FEED_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Pricing.Interval)
	assert.Equal(t, 45*time.Second, cfg.Trading.MaxPriceAge)
	assert.Equal(t, 750*time.Millisecond, cfg.Feeds.Timeout)
	require.Len(t, cfg.Feeds.Sources, 1)
	assert.Equal(t, FeedHuobi, cfg.Feeds.Sources[0].Name)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"BadDriver", map[string]string{"STORAGE_DRIVER": "mongo"}},
		{"BadDuration", map[string]string{"MAX_PRICE_AGE": "soon"}},
		{"BadRedisDB", map[string]string{"REDIS_DB": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
