package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
	"github.com/yndnr/canvasvault/pkg/crypto/adaptive"
)

// Verify validates the configuration and creates the data directory.
// All problems are reported together.
func Verify(cfg *ServerConfig) error {
	errs := []error{
		verifyServer(&cfg.Server),
		verifyStorage(&cfg.Storage),
		verifySnapshot(&cfg.Snapshot),
		verifySecurity(&cfg.Security),
		verifyMetrics(&cfg.Metrics),
		verifyLog(&cfg.Log),
	}
	return errors.Join(errs...)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.http.addr %q: %w", cfg.HTTP.Addr, err))
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http.tls_cert_file and tls_key_file must be set together"))
	}
	if cfg.HTTP.TLSClientCAFile != "" && cfg.HTTP.TLSCertFile == "" {
		errs = append(errs, errors.New("server.http.tls_client_ca_file requires tls_cert_file"))
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile, cfg.HTTP.TLSClientCAFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server.http tls file: %w", err))
		}
	}
	if cfg.Local.SocketPath != "" {
		if _, err := os.Stat(filepath.Dir(cfg.Local.SocketPath)); err != nil {
			errs = append(errs, fmt.Errorf("server.local.socket_path: %w", err))
		}
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.http.max_body_bytes must be positive"))
	}
	if cfg.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		errs = append(errs, errors.New("server.http.rate_burst must be at least 1 when rate limiting"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	switch strings.ToLower(cfg.Engine) {
	case "", storage.EngineBadger, storage.EngineBolt:
	default:
		return fmt.Errorf("storage.engine %q: want %q or %q", cfg.Engine, storage.EngineBadger, storage.EngineBolt)
	}

	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}

	if cfg.OpenTimeout <= 0 {
		return errors.New("storage.open_timeout must be positive")
	}
	if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
		return errors.New("storage.badger.gc_threshold must be between 0 and 1")
	}
	if cfg.Bolt.File == "" || filepath.Base(cfg.Bolt.File) != cfg.Bolt.File {
		return fmt.Errorf("storage.bolt.file %q must be a plain file name", cfg.Bolt.File)
	}
	return nil
}

func verifySnapshot(cfg *SnapshotSection) error {
	if cfg.RetentionCount < 0 && cfg.RetentionDays < 0 {
		return errors.New("snapshot: retention_count and retention_days cannot both be disabled")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.Cipher != "" {
		switch adaptive.CipherType(cfg.Cipher) {
		case adaptive.CipherAESGCM, adaptive.CipherChaCha20:
		default:
			return fmt.Errorf("security.cipher %q is not supported", cfg.Cipher)
		}
	}
	if cfg.EncryptionKey == "" {
		return nil
	}
	if _, err := adaptive.ParseKey(cfg.EncryptionKey); err != nil {
		return fmt.Errorf("security.encryption_key: %w", err)
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", cfg.Path)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not a level", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q: want json or text", cfg.Format)
	}
	return nil
}
