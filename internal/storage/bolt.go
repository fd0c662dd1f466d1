package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/boltdb/bolt"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

var metaBucket = []byte("meta")

// BoltDriver opens a single-file Bolt database with one bucket per
// collection.
type BoltDriver struct {
	cfg    KVConfig
	logger *slog.Logger
}

// NewBoltDriver creates a driver for the Bolt engine.
func NewBoltDriver(cfg KVConfig, logger *slog.Logger) *BoltDriver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bolt.File == "" {
		cfg.Bolt.File = DefaultBoltConfig().File
	}
	return &BoltDriver{cfg: cfg, logger: logger}
}

// Name returns "bolt".
func (d *BoltDriver) Name() string { return EngineBolt }

// Path returns the database file path.
func (d *BoltDriver) Path() string {
	return filepath.Join(d.cfg.Dir, d.cfg.Bolt.File)
}

// Open opens the database file and creates any missing bucket.
func (d *BoltDriver) Open(ctx context.Context) (Durable, error) {
	if d.cfg.Dir == "" {
		return nil, fmt.Errorf("bolt: dir is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("bolt: create dir: %w", err)
	}

	db, err := bolt.Open(d.Path(), 0o600, &bolt.Options{Timeout: d.cfg.Bolt.LockTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", d.Path(), err)
	}
	db.NoSync = d.cfg.Bolt.NoSync

	err = db.Update(func(tx *bolt.Tx) error {
		for _, c := range domain.Collections() {
			if _, err := tx.CreateBucketIfNotExists([]byte(c)); err != nil {
				return fmt.Errorf("create bucket %s: %w", c, err)
			}
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return fmt.Errorf("create bucket meta: %w", err)
		}
		return meta.Put([]byte("schema_version"), []byte(SchemaVersion))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: init: %w", err)
	}

	d.logger.Info("bolt backend opened", "path", d.Path())
	return &BoltBackend{db: db, sealer: d.cfg.Sealer, logger: d.logger}, nil
}

// Destroy removes the database file.
func (d *BoltDriver) Destroy(ctx context.Context) error {
	if err := os.Remove(d.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bolt: remove %s: %w", d.Path(), err)
	}
	return nil
}

// BoltBackend stores each collection in its own bucket keyed by id.
type BoltBackend struct {
	db     *bolt.DB
	sealer ValueSealer
	logger *slog.Logger
	closed atomic.Bool
}

func (b *BoltBackend) bucket(tx *bolt.Tx, c domain.Collection) (*bolt.Bucket, error) {
	bkt := tx.Bucket([]byte(c))
	if bkt == nil {
		return nil, domain.ErrUnknownCollection.WithDetails(string(c))
	}
	return bkt, nil
}

// Get retrieves a record. A missing record yields (nil, nil).
func (b *BoltBackend) Get(ctx context.Context, c domain.Collection, id string) (domain.Record, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := b.bucket(tx, c)
		if err != nil {
			return err
		}
		// Bolt values are only valid inside the transaction.
		if v := bkt.Get([]byte(id)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get %s/%s: %w", c, id, err)
	}
	if value == nil {
		return nil, nil
	}
	return openValue(b.sealer, recordKey(c, id), value)
}

// Put upserts a record keyed by its id.
func (b *BoltBackend) Put(ctx context.Context, c domain.Collection, rec domain.Record) error {
	if b.closed.Load() {
		return ErrClosed
	}
	id, err := rec.ID()
	if err != nil {
		return err
	}
	value, err := sealValue(b.sealer, recordKey(c, id), rec)
	if err != nil {
		return err
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.bucket(tx, c)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(id), value)
	})
	if err != nil {
		return fmt.Errorf("bolt: put %s/%s: %w", c, id, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (b *BoltBackend) Delete(ctx context.Context, c domain.Collection, id string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.bucket(tx, c)
		if err != nil {
			return err
		}
		return bkt.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("bolt: delete %s/%s: %w", c, id, err)
	}
	return nil
}

// ListKeys returns the ids stored in c in byte order.
func (b *BoltBackend) ListKeys(ctx context.Context, c domain.Collection) ([]string, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if !c.Valid() {
		return []string{}, nil
	}

	keys := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := b.bucket(tx, c)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list %s: %w", c, err)
	}
	return keys, nil
}

// Clear drops and recreates the bucket of c.
func (b *BoltBackend) Clear(ctx context.Context, c domain.Collection) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(c)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(c))
		return err
	})
	if err != nil {
		return fmt.Errorf("bolt: clear %s: %w", c, err)
	}
	return nil
}

// Close closes the database file.
func (b *BoltBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("bolt: close: %w", err)
	}
	b.logger.Info("bolt backend closed")
	return nil
}
