package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/storage/snapshot"
	"github.com/yndnr/canvasvault/pkg/crypto/adaptive"
)

// KVConfig builds the durable engine configuration, including the value
// sealer when an encryption key is set.
func (c *ServerConfig) KVConfig() (storage.KVConfig, error) {
	kv := storage.DefaultKVConfig(c.Storage.DataDir)
	if c.Storage.Engine != "" {
		kv.Engine = strings.ToLower(c.Storage.Engine)
	}
	// Badger owns its whole directory and a reset removes it, so it lives
	// below the data dir next to the snapshots and the reset marker.
	if kv.Engine == storage.EngineBadger {
		kv.Dir = c.EngineDir()
	}

	kv.Badger.GCInterval = c.Storage.Badger.GCInterval
	kv.Badger.GCThreshold = c.Storage.Badger.GCThreshold
	if c.Storage.Badger.CacheSize > 0 {
		kv.Badger.CacheSize = c.Storage.Badger.CacheSize
	}
	kv.Badger.SyncWrites = c.Storage.Badger.SyncWrites

	if c.Storage.Bolt.File != "" {
		kv.Bolt.File = c.Storage.Bolt.File
	}
	if c.Storage.Bolt.LockTimeout > 0 {
		kv.Bolt.LockTimeout = c.Storage.Bolt.LockTimeout
	}
	kv.Bolt.NoSync = c.Storage.Bolt.NoSync

	if c.Security.EncryptionKey == "" {
		return kv, nil
	}
	key, err := adaptive.ParseKey(c.Security.EncryptionKey)
	if err != nil {
		return kv, fmt.Errorf("config: encryption key: %w", err)
	}
	typ := adaptive.PreferredType()
	if c.Security.Cipher != "" {
		typ = adaptive.CipherType(c.Security.Cipher)
	}
	sealer, err := adaptive.NewSealerWithType(key, typ)
	if err != nil {
		return kv, fmt.Errorf("config: sealer: %w", err)
	}
	kv.Sealer = sealer
	return kv, nil
}

// EngineDir returns the directory holding the durable database files.
func (c *ServerConfig) EngineDir() string {
	if strings.EqualFold(c.Storage.Engine, storage.EngineBolt) {
		return c.Storage.DataDir
	}
	return filepath.Join(c.Storage.DataDir, storage.EngineBadger)
}

// ResetFlagPath returns the reset marker location.
func (c *ServerConfig) ResetFlagPath() string {
	return storage.ResetFlagPath(c.Storage.DataDir, c.Storage.ResetFlagFile)
}

// SnapshotDir returns the backup directory.
func (c *ServerConfig) SnapshotDir() string {
	if c.Snapshot.Dir != "" {
		return c.Snapshot.Dir
	}
	return filepath.Join(c.Storage.DataDir, "snapshots")
}

// SnapshotConfig builds the snapshot manager configuration.
func (c *ServerConfig) SnapshotConfig() snapshot.Config {
	return snapshot.Config{
		Dir:            c.SnapshotDir(),
		RetentionCount: c.Snapshot.RetentionCount,
		RetentionDays:  c.Snapshot.RetentionDays,
	}
}
