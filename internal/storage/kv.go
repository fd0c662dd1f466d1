package storage

import (
	"context"
	"time"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

// Engine names accepted by NewDriver.
const (
	EngineBadger = "badger"
	EngineBolt   = "bolt"
)

// Backend is the primitive contract shared by the durable backends and the
// memory fallback.
//
// Get returns a nil Record and a nil error when the record does not exist.
type Backend interface {
	Get(ctx context.Context, c domain.Collection, id string) (domain.Record, error)
	Put(ctx context.Context, c domain.Collection, rec domain.Record) error
	Delete(ctx context.Context, c domain.Collection, id string) error
	ListKeys(ctx context.Context, c domain.Collection) ([]string, error)
	Clear(ctx context.Context, c domain.Collection) error
}

// Durable is an open durable backend.
type Durable interface {
	Backend
	Close() error
}

// Driver opens and destroys one named durable database.
type Driver interface {
	// Name returns the engine name.
	Name() string

	// Open opens the database, creating it and its collections if absent.
	Open(ctx context.Context) (Durable, error)

	// Destroy deletes the whole database.
	Destroy(ctx context.Context) error
}

// KVConfig configures a durable engine.
type KVConfig struct {
	// Engine specifies the engine type ("badger", "bolt").
	// Default: "badger"
	Engine string

	// Dir is the storage directory.
	Dir string

	Badger BadgerConfig
	Bolt   BoltConfig

	// Sealer encrypts values at rest. Nil stores plaintext.
	Sealer ValueSealer
}

// ValueSealer provides authenticated encryption for stored values.
// The storage key is passed as additional data so a value cannot be
// replayed under another key.
type ValueSealer interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(sealed, aad []byte) ([]byte, error)
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites enables fsync after each write.
	// Default: true (each put is a user edit that must survive a crash)
	SyncWrites bool
}

// BoltConfig contains Bolt-specific parameters.
type BoltConfig struct {
	// File is the database file name inside Dir.
	// Default: "canvasvault.db"
	File string

	// LockTimeout bounds how long Open waits for the file lock.
	// Default: 1s
	LockTimeout time.Duration

	// NoSync skips fsync after each commit.
	NoSync bool
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Engine: EngineBadger,
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
		Bolt:   DefaultBoltConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,  // 64MB
		ValueLogFileSize: 256 << 20, // 256MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// DefaultBoltConfig returns the default Bolt configuration.
func DefaultBoltConfig() BoltConfig {
	return BoltConfig{
		File:        "canvasvault.db",
		LockTimeout: time.Second,
	}
}
