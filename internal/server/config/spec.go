package config

import "time"

// ServerConfig is the root configuration for canvasvault-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server" json:"server"`
	Storage  StorageSection  `koanf:"storage" json:"storage"`
	Snapshot SnapshotSection `koanf:"snapshot" json:"snapshot"`
	Security SecuritySection `koanf:"security" json:"security"`
	Metrics  MetricsSection  `koanf:"metrics" json:"metrics"`
	Log      LogSection      `koanf:"log" json:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http" json:"http"`
	Local LocalConfig `koanf:"local" json:"local"`
}

// LocalConfig configures the unix-socket admin endpoint. It serves the
// same API without TLS, rate limiting or CORS and is only reachable by
// users allowed to open the socket file.
type LocalConfig struct {
	// SocketPath enables the endpoint when set.
	SocketPath string `koanf:"socket_path" json:"socket_path"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" json:"addr"`
	TLSCertFile     string        `koanf:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file" json:"tls_key_file"`
	// TLSClientCAFile, when set, requires clients to present a
	// certificate signed by one of the CAs in this PEM file.
	TLSClientCAFile string        `koanf:"tls_client_ca_file" json:"tls_client_ca_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies. Imports carry whole documents
	// with embedded images, so the default is generous.
	MaxBodyBytes int64 `koanf:"max_body_bytes" json:"max_body_bytes"`

	// RateLimit is the sustained requests per second allowed per client
	// IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit"`
	RateBurst int     `koanf:"rate_burst" json:"rate_burst"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty disables CORS headers; "*" allows any origin.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" json:"cors_allowed_origins"`
}

// StorageSection configures the durable store and its fallback.
type StorageSection struct {
	Engine        string        `koanf:"engine" json:"engine"`
	DataDir       string        `koanf:"data_dir" json:"data_dir"`
	OpenTimeout   time.Duration `koanf:"open_timeout" json:"open_timeout"`
	ResetFlagFile string        `koanf:"reset_flag_file" json:"reset_flag_file"`
	Badger        BadgerSection `koanf:"badger" json:"badger"`
	Bolt          BoltSection   `koanf:"bolt" json:"bolt"`
}

// BadgerSection tunes the badger engine.
type BadgerSection struct {
	GCInterval  time.Duration `koanf:"gc_interval" json:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" json:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size" json:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes" json:"sync_writes"`
}

// BoltSection tunes the bolt engine.
type BoltSection struct {
	File        string        `koanf:"file" json:"file"`
	LockTimeout time.Duration `koanf:"lock_timeout" json:"lock_timeout"`
	NoSync      bool          `koanf:"no_sync" json:"no_sync"`
}

// SnapshotSection configures stored backup files.
type SnapshotSection struct {
	// Dir defaults to <storage.data_dir>/snapshots when empty.
	Dir            string `koanf:"dir" json:"dir"`
	RetentionCount int    `koanf:"retention_count" json:"retention_count"`
	RetentionDays  int    `koanf:"retention_days" json:"retention_days"`
}

// SecuritySection configures at-rest encryption.
type SecuritySection struct {
	// EncryptionKey is a 32-byte key in hex or base64. Empty stores
	// values in plaintext.
	EncryptionKey string `koanf:"encryption_key" json:"encryption_key"`

	// Cipher selects the cipher for new writes ("aes-gcm",
	// "chacha20-poly1305"). Empty picks by CPU architecture.
	Cipher string `koanf:"cipher" json:"cipher"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Path    string `koanf:"path" json:"path"`
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level" json:"level"`
	Format    string `koanf:"format" json:"format"`
	AddSource bool   `koanf:"add_source" json:"add_source"`
}
