// Package config loads runtime settings from a .env file and the process
// environment. Variables already set in the environment win over the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chmdznr/odoo-recruit-sync/internal/blob"
	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
)

// Blob backends.
const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// Config holds every setting of the osync binary.
type Config struct {
	DBPath        string
	EncryptionKey string
	BlobBackend   string
	BlobDir       string
	Minio         blob.MinioConfig
	HTTPTimeout   time.Duration
	LogLevel      string
	LogFormat     string
}

// Load reads the given dotenv files (".env" when none is given; missing
// files are ignored) and then the environment. Earlier files take precedence
// over later ones.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fileEnv := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		if v, ok := fileEnv[key]; ok {
			return v
		}
		return def
	}

	cfg := &Config{
		DBPath:        get("OSYNC_DB_PATH", "osync.db"),
		EncryptionKey: get("OSYNC_ENCRYPTION_KEY", ""),
		BlobBackend:   strings.ToLower(get("OSYNC_BLOB_BACKEND", BackendLocal)),
		BlobDir:       get("OSYNC_BLOB_DIR", "media"),
		Minio: blob.MinioConfig{
			Endpoint:  get("OSYNC_MINIO_ENDPOINT", ""),
			Bucket:    get("OSYNC_MINIO_BUCKET", ""),
			AccessKey: get("OSYNC_MINIO_ACCESS_KEY", ""),
			SecretKey: get("OSYNC_MINIO_SECRET_KEY", ""),
			Region:    get("OSYNC_MINIO_REGION", ""),
		},
		LogLevel:  strings.ToLower(get("OSYNC_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(get("OSYNC_LOG_FORMAT", "text")),
	}

	secure, err := strconv.ParseBool(get("OSYNC_MINIO_SECURE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid OSYNC_MINIO_SECURE: %w", err)
	}
	cfg.Minio.Secure = secure

	timeout := get("OSYNC_HTTP_TIMEOUT", "")
	cfg.HTTPTimeout = odoo.DefaultTimeout
	if timeout != "" {
		if cfg.HTTPTimeout, err = time.ParseDuration(timeout); err != nil {
			return nil, fmt.Errorf("invalid OSYNC_HTTP_TIMEOUT: %w", err)
		}
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("OSYNC_DB_PATH must not be empty"))
	}
	switch c.BlobBackend {
	case BackendLocal:
		if c.BlobDir == "" {
			errs = append(errs, errors.New("OSYNC_BLOB_DIR must not be empty"))
		}
	case BackendMinio:
		for _, setting := range [][2]string{
			{"OSYNC_MINIO_ENDPOINT", c.Minio.Endpoint},
			{"OSYNC_MINIO_BUCKET", c.Minio.Bucket},
			{"OSYNC_MINIO_ACCESS_KEY", c.Minio.AccessKey},
			{"OSYNC_MINIO_SECRET_KEY", c.Minio.SecretKey},
		} {
			if setting[1] == "" {
				errs = append(errs, fmt.Errorf("%s is required for the minio backend", setting[0]))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.BlobBackend))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("OSYNC_HTTP_TIMEOUT must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogger builds the structured logger described by LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenBlobStore returns the configured attachment store. For MinIO the
// bucket is created when missing.
func (c *Config) OpenBlobStore(ctx context.Context) (blob.Store, error) {
	switch c.BlobBackend {
	case BackendMinio:
		store, err := blob.NewMinioStore(c.Minio)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case BackendLocal:
		return blob.NewLocalStore(c.BlobDir)
	}
	return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
}
