package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	v.Set("openai.api_key", "sk-test-1234567890")
	v.Set("database.driver", "sqlite")
	v.Set("database.dsn", "file::memory:")
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(validViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.Model)
	assert.Equal(t, "whisper-1", cfg.OpenAI.TranscriptionModel)
	assert.Equal(t, 4096, cfg.OpenAI.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	assert.Zero(t, cfg.OpenAI.RetryCount)
	assert.Equal(t, 5, cfg.Database.MinConns)
	assert.Equal(t, 100, cfg.Database.MaxConns)
	assert.Equal(t, 60*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 512, cfg.Image.MaxDimension)
	assert.Equal(t, 100, cfg.Image.JPEGQuality)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.StartupDelay)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, time.Second, cfg.DedupWindow)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env-abcdefgh")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "recipes")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "recipes")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DEDUP_WINDOW", "2s")
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("LOG_MODE", "concise")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sk-env-abcdefgh", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.DedupWindow)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "concise", cfg.LogMode)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"missing api key", map[string]interface{}{"openai.api_key": ""}},
		{"sqlite without dsn", map[string]interface{}{"database.dsn": ""}},
		{"incomplete postgres", map[string]interface{}{"database.driver": "postgres", "database.dsn": ""}},
		{"unknown driver", map[string]interface{}{"database.driver": "mysql"}},
		{"pool inverted", map[string]interface{}{"database.min_conns": 10, "database.max_conns": 2}},
		{"unknown cache backend", map[string]interface{}{"cache.backend": "memcached"}},
		{"no workers", map[string]interface{}{"queue.workers": 0}},
		{"bad jpeg quality", map[string]interface{}{"image.jpeg_quality": 101}},
		{"bad rate limit", map[string]interface{}{"rate_limit.requests": 0}},
		{"unknown log mode", map[string]interface{}{"log_mode": "verbose"}},
		{"negative retries", map[string]interface{}{"openai.retry_count": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	assert.Equal(t, "sk-t...7890", MaskAPIKey("sk-test-1234567890"))
}
