package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/odoo-recruit-sync/internal/blob"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "osync.db", cfg.DBPath)
	assert.Equal(t, BackendLocal, cfg.BlobBackend)
	assert.Equal(t, "media", cfg.BlobDir)
	assert.True(t, cfg.Minio.Secure)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeEnv(t, `
OSYNC_DB_PATH=from-file.db
OSYNC_BLOB_BACKEND=MINIO
OSYNC_MINIO_ENDPOINT=localhost:9000
OSYNC_MINIO_BUCKET=attachments
OSYNC_MINIO_ACCESS_KEY=key
OSYNC_MINIO_SECRET_KEY=secret
OSYNC_MINIO_SECURE=false
OSYNC_HTTP_TIMEOUT=5s
`)
	t.Setenv("OSYNC_DB_PATH", "from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath, "environment wins over the file")
	assert.Equal(t, BackendMinio, cfg.BlobBackend)
	assert.Equal(t, "localhost:9000", cfg.Minio.Endpoint)
	assert.False(t, cfg.Minio.Secure)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeEnv(t, "OSYNC_HTTP_TIMEOUT=soon\n"))
	assert.ErrorContains(t, err, "OSYNC_HTTP_TIMEOUT")

	_, err = Load(writeEnv(t, "OSYNC_MINIO_SECURE=maybe\n"))
	assert.ErrorContains(t, err, "OSYNC_MINIO_SECURE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "minio without settings", mutate: func(c *Config) { c.BlobBackend = BackendMinio }, wantErr: "OSYNC_MINIO_BUCKET"},
		{name: "unknown backend", mutate: func(c *Config) { c.BlobBackend = "ftp" }, wantErr: "unknown blob backend"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "unknown log level"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "unknown log format"},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTPTimeout = 0 }, wantErr: "OSYNC_HTTP_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DBPath: "x.db", BlobBackend: BackendLocal, BlobDir: "media", HTTPTimeout: time.Second, LogLevel: "info", LogFormat: "text"}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateListsMissingMinioSettingsInOrder(t *testing.T) {
	cfg := &Config{
		DBPath:      "x.db",
		BlobBackend: BackendMinio,
		Minio:       blob.MinioConfig{Bucket: "attachments"},
		HTTPTimeout: time.Second,
		LogLevel:    "info",
		LogFormat:   "text",
	}
	for i := 0; i < 5; i++ {
		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t,
			"OSYNC_MINIO_ENDPOINT is required for the minio backend\n"+
				"OSYNC_MINIO_ACCESS_KEY is required for the minio backend\n"+
				"OSYNC_MINIO_SECRET_KEY is required for the minio backend",
			err.Error())
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "company", 10)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"company":10`)
}

func TestOpenBlobStoreLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	cfg := &Config{BlobBackend: BackendLocal, BlobDir: dir}

	store, err := cfg.OpenBlobStore(context.Background())
	require.NoError(t, err)
	require.IsType(t, &blob.LocalStore{}, store)
	assert.DirExists(t, dir)
}
