package config

import (
	"time"

	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/storage/snapshot"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = 64 << 20 // 64MB
	DefaultRateLimit       = 50.0
	DefaultRateBurst       = 100

	DefaultDataDir = "/var/lib/canvasvault/data"

	DefaultMetricsPath = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	badger := storage.DefaultBadgerConfig()
	bolt := storage.DefaultBoltConfig()

	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				MaxBodyBytes:    DefaultMaxBodyBytes,
				RateLimit:       DefaultRateLimit,
				RateBurst:       DefaultRateBurst,
			},
		},
		Storage: StorageSection{
			Engine:        storage.EngineBadger,
			DataDir:       DefaultDataDir,
			OpenTimeout:   storage.DefaultOpenTimeout,
			ResetFlagFile: storage.DefaultResetFlagFile,
			Badger: BadgerSection{
				GCInterval:  badger.GCInterval,
				GCThreshold: badger.GCThreshold,
				CacheSize:   badger.CacheSize,
				SyncWrites:  badger.SyncWrites,
			},
			Bolt: BoltSection{
				File:        bolt.File,
				LockTimeout: bolt.LockTimeout,
			},
		},
		Snapshot: SnapshotSection{
			RetentionCount: snapshot.DefaultRetentionCount,
			RetentionDays:  snapshot.DefaultRetentionDays,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// DefaultMap returns Default as a nested map for confloader.WithDefaults.
// Durations are rendered as strings so that they decode the same way as
// values read from YAML or the environment.
func DefaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"server": map[string]any{
			"http": map[string]any{
				"addr":             d.Server.HTTP.Addr,
				"tls_cert_file":    "",
				"tls_key_file":     "",
				"read_timeout":     d.Server.HTTP.ReadTimeout.String(),
				"write_timeout":    d.Server.HTTP.WriteTimeout.String(),
				"shutdown_timeout": d.Server.HTTP.ShutdownTimeout.String(),
				"max_body_bytes":   d.Server.HTTP.MaxBodyBytes,
				"rate_limit":       d.Server.HTTP.RateLimit,
				"rate_burst":       d.Server.HTTP.RateBurst,

				"tls_client_ca_file":   "",
				"cors_allowed_origins": []string{},
			},
			"local": map[string]any{
				"socket_path": "",
			},
		},
		"storage": map[string]any{
			"engine":          d.Storage.Engine,
			"data_dir":        d.Storage.DataDir,
			"open_timeout":    d.Storage.OpenTimeout.String(),
			"reset_flag_file": d.Storage.ResetFlagFile,
			"badger": map[string]any{
				"gc_interval":  d.Storage.Badger.GCInterval.String(),
				"gc_threshold": d.Storage.Badger.GCThreshold,
				"cache_size":   d.Storage.Badger.CacheSize,
				"sync_writes":  d.Storage.Badger.SyncWrites,
			},
			"bolt": map[string]any{
				"file":         d.Storage.Bolt.File,
				"lock_timeout": d.Storage.Bolt.LockTimeout.String(),
				"no_sync":      d.Storage.Bolt.NoSync,
			},
		},
		"snapshot": map[string]any{
			"dir":             "",
			"retention_count": d.Snapshot.RetentionCount,
			"retention_days":  d.Snapshot.RetentionDays,
		},
		"security": map[string]any{
			"encryption_key": "",
			"cipher":         "",
		},
		"metrics": map[string]any{
			"enabled": d.Metrics.Enabled,
			"path":    d.Metrics.Path,
		},
		"log": map[string]any{
			"level":      d.Log.Level,
			"format":     d.Log.Format,
			"add_source": d.Log.AddSource,
		},
	}
}
