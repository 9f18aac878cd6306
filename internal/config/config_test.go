package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Database.Type)
	assert.Equal(t, "filesystem", cfg.Storage.Backend)
	assert.Equal(t, "./data/blob-storage", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.Push.Timeout)
	assert.Equal(t, int64(30*1024*1024), cfg.Ingest.MaxBodySize)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("WEBMAIL_SERVER_PORT", "9090")
	t.Setenv("WEBMAIL_STORAGE_BACKEND", "s3")
	t.Setenv("WEBMAIL_STORAGE_S3_BUCKET", "mail-blobs")
	t.Setenv("WEBMAIL_STORAGE_ENDPOINT", "https://r2.example.com")
	t.Setenv("WEBMAIL_PUSH_TIMEOUT", "3s")
	t.Setenv("WEBMAIL_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "mail-blobs", cfg.Storage.S3Bucket)
	assert.Equal(t, "https://r2.example.com", cfg.Storage.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Push.Timeout)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoadValidation(t *testing.T) {
	t.Run("s3 后端缺少桶名", func(t *testing.T) {
		viper.Reset()
		t.Setenv("WEBMAIL_STORAGE_BACKEND", "s3")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("未知的存储后端", func(t *testing.T) {
		viper.Reset()
		t.Setenv("WEBMAIL_STORAGE_BACKEND", "ftp")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("未知的数据库类型", func(t *testing.T) {
		viper.Reset()
		t.Setenv("WEBMAIL_DATABASE_TYPE", "sqlite")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("数据库类型缺少 DSN", func(t *testing.T) {
		viper.Reset()
		t.Setenv("WEBMAIL_DATABASE_TYPE", "postgres")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法的推送超时", func(t *testing.T) {
		viper.Reset()
		t.Setenv("WEBMAIL_PUSH_TIMEOUT", "forever")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList("a, b"))
	assert.Empty(t, parseList(""))
	assert.Equal(t, []string{"*"}, parseList("*"))
}
