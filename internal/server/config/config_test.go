package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/canvasvault/internal/infra/confloader"
	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/pkg/crypto/adaptive"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Storage.Engine != storage.EngineBadger {
		t.Errorf("Engine = %q, want badger", cfg.Storage.Engine)
	}
	if cfg.Storage.OpenTimeout != 3*time.Second {
		t.Errorf("OpenTimeout = %v, want 3s", cfg.Storage.OpenTimeout)
	}
	if cfg.Storage.ResetFlagFile != storage.DefaultResetFlagFile {
		t.Errorf("ResetFlagFile = %q", cfg.Storage.ResetFlagFile)
	}
	if !cfg.Storage.Badger.SyncWrites {
		t.Error("badger sync writes should default to true")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("unexpected metrics defaults %+v", cfg.Metrics)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
}

func TestDefaultMap_LoadsToDefault(t *testing.T) {
	var cfg ServerConfig
	l := confloader.NewLoader(
		confloader.WithEnvPrefix("CVTEST_DEFAULTMAP_"),
		confloader.WithDefaults(DefaultMap()),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Server.HTTP.Addr != want.Server.HTTP.Addr ||
		cfg.Server.HTTP.ReadTimeout != want.Server.HTTP.ReadTimeout ||
		cfg.Server.HTTP.MaxBodyBytes != want.Server.HTTP.MaxBodyBytes ||
		cfg.Server.HTTP.RateLimit != want.Server.HTTP.RateLimit ||
		cfg.Server.HTTP.RateBurst != want.Server.HTTP.RateBurst ||
		len(cfg.Server.HTTP.CORSAllowedOrigins) != 0 {
		t.Errorf("server.http = %+v, want %+v", cfg.Server.HTTP, want.Server.HTTP)
	}
	if cfg.Storage != want.Storage {
		t.Errorf("storage = %+v, want %+v", cfg.Storage, want.Storage)
	}
	if cfg.Snapshot != want.Snapshot || cfg.Metrics != want.Metrics || cfg.Log != want.Log {
		t.Errorf("sections differ: %+v", cfg)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvasvault.yaml")
	content := `
storage:
  engine: bolt
  open_timeout: 500ms
snapshot:
  retention_count: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CVTEST_LOAD_STORAGE_DATA_DIR", "/srv/canvas")
	t.Setenv("CVTEST_LOAD_SECURITY_ENCRYPTION_KEY", testKey)

	var cfg ServerConfig
	l := confloader.NewLoader(
		confloader.WithEnvPrefix("CVTEST_LOAD_"),
		confloader.WithDefaults(DefaultMap()),
		confloader.WithConfigFile(path),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Engine != "bolt" || cfg.Storage.OpenTimeout != 500*time.Millisecond {
		t.Errorf("file values not applied: %+v", cfg.Storage)
	}
	if cfg.Storage.DataDir != "/srv/canvas" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Security.EncryptionKey != testKey {
		t.Error("encryption key from env not applied")
	}
	if cfg.Snapshot.RetentionCount != 2 || cfg.Snapshot.RetentionDays != Default().Snapshot.RetentionDays {
		t.Errorf("snapshot = %+v", cfg.Snapshot)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"valid", func(*ServerConfig) {}, ""},
		{"bolt engine", func(c *ServerConfig) { c.Storage.Engine = "bolt" }, ""},
		{"bad engine", func(c *ServerConfig) { c.Storage.Engine = "sqlite" }, "storage.engine"},
		{"empty data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "data_dir is required"},
		{"zero open timeout", func(c *ServerConfig) { c.Storage.OpenTimeout = 0 }, "open_timeout"},
		{"gc threshold", func(c *ServerConfig) { c.Storage.Badger.GCThreshold = 1.5 }, "gc_threshold"},
		{"bolt file path", func(c *ServerConfig) { c.Storage.Bolt.File = "../x.db" }, "plain file name"},
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "no-port" }, "server.http.addr"},
		{"tls half", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "cert.pem" }, "set together"},
		{"client ca without cert", func(c *ServerConfig) { c.Server.HTTP.TLSClientCAFile = "ca.pem" }, "requires tls_cert_file"},
		{"socket dir missing", func(c *ServerConfig) { c.Server.Local.SocketPath = "/nonexistent/dir/admin.sock" }, "socket_path"},
		{"body cap", func(c *ServerConfig) { c.Server.HTTP.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"burst", func(c *ServerConfig) { c.Server.HTTP.RateBurst = 0 }, "rate_burst"},
		{"no limit no burst", func(c *ServerConfig) { c.Server.HTTP.RateLimit, c.Server.HTTP.RateBurst = 0, 0 }, ""},
		{"retention", func(c *ServerConfig) { c.Snapshot.RetentionCount, c.Snapshot.RetentionDays = -1, -1 }, "retention"},
		{"valid key", func(c *ServerConfig) { c.Security.EncryptionKey = testKey }, ""},
		{"short key", func(c *ServerConfig) { c.Security.EncryptionKey = "abcd" }, "encryption_key"},
		{"bad cipher", func(c *ServerConfig) { c.Security.Cipher = "rot13" }, "security.cipher"},
		{"metrics path", func(c *ServerConfig) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"log level", func(c *ServerConfig) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Verify() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_CreatesDataDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "a", "b", "c")

	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if info, err := os.Stat(cfg.Storage.DataDir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	cfg := &ServerConfig{Security: SecuritySection{EncryptionKey: "super-secret-key-1234567890"}}

	sanitized := Sanitize(cfg)

	if cfg.Security.EncryptionKey != "super-secret-key-1234567890" {
		t.Error("Original config should not be modified")
	}
	if sanitized.Security.EncryptionKey == cfg.Security.EncryptionKey {
		t.Error("Sanitized config should mask the encryption key")
	}
	if Sanitize(&ServerConfig{}).Security.EncryptionKey != "" {
		t.Error("empty key should stay empty")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "****"},
		{"abcd", "****"},
		{"abcdef", "ab**ef"},
		{"0123456789", "01******89"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKVConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Engine = "bolt"
	cfg.Storage.Bolt.File = "doc.db"

	kv, err := cfg.KVConfig()
	if err != nil {
		t.Fatalf("KVConfig() error = %v", err)
	}
	if kv.Engine != "bolt" || kv.Dir != cfg.Storage.DataDir || kv.Bolt.File != "doc.db" {
		t.Errorf("unexpected kv config %+v", kv)
	}
	if kv.Sealer != nil {
		t.Error("no key should mean no sealer")
	}

	cfg.Storage.Engine = "badger"
	kv, err = cfg.KVConfig()
	if err != nil {
		t.Fatalf("KVConfig() error = %v", err)
	}
	if kv.Dir != filepath.Join(cfg.Storage.DataDir, "badger") {
		t.Errorf("badger dir = %q, want a subdirectory of the data dir", kv.Dir)
	}

	cfg.Security.EncryptionKey = testKey
	cfg.Security.Cipher = string(adaptive.CipherChaCha20)
	kv, err = cfg.KVConfig()
	if err != nil {
		t.Fatalf("KVConfig() error = %v", err)
	}
	sealer, ok := kv.Sealer.(*adaptive.Sealer)
	if !ok || sealer.Type() != adaptive.CipherChaCha20 {
		t.Errorf("sealer = %#v, want chacha20 sealer", kv.Sealer)
	}

	cfg.Security.EncryptionKey = "nope"
	if _, err := cfg.KVConfig(); err == nil {
		t.Error("KVConfig() should reject an invalid key")
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"

	if got := cfg.ResetFlagPath(); got != filepath.Join("/data", storage.DefaultResetFlagFile) {
		t.Errorf("ResetFlagPath() = %q", got)
	}
	if got := cfg.SnapshotDir(); got != filepath.Join("/data", "snapshots") {
		t.Errorf("SnapshotDir() = %q", got)
	}

	cfg.Snapshot.Dir = "/backups"
	sc := cfg.SnapshotConfig()
	if sc.Dir != "/backups" || sc.RetentionCount != cfg.Snapshot.RetentionCount {
		t.Errorf("SnapshotConfig() = %+v", sc)
	}
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load("", map[string]any{
		"storage.data_dir": dir,
		"storage.engine":   "bolt",
	}, confloader.WithEnvPrefix("CVTEST_OVERRIDE_"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.DataDir != dir || cfg.Storage.Engine != "bolt" {
		t.Errorf("overrides not applied: %+v", cfg.Storage)
	}
	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("defaults lost after override: addr = %q", cfg.Server.HTTP.Addr)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	_, err := Load("", map[string]any{
		"storage.data_dir": t.TempDir(),
		"storage.engine":   "leveldb",
	}, confloader.WithEnvPrefix("CVTEST_INVALID_"))
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("Load() error = %v, want invalid configuration", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil, confloader.WithEnvPrefix("CVTEST_MISSING_"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
