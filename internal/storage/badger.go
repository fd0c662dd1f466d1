package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

// SchemaVersion is written under metaSchemaKey when a database is opened.
const SchemaVersion = "1"

var metaSchemaKey = []byte("meta/schema_version")

// ErrClosed is returned by a durable backend after Close.
var ErrClosed = errors.New("storage: backend closed")

// BadgerDriver opens Badger databases rooted at cfg.Dir.
type BadgerDriver struct {
	cfg    KVConfig
	logger *slog.Logger

	// Registerer, when set, receives size gauges for the opened database.
	Registerer prometheus.Registerer
}

// NewBadgerDriver creates a driver for the Badger engine.
func NewBadgerDriver(cfg KVConfig, logger *slog.Logger) *BadgerDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerDriver{cfg: cfg, logger: logger}
}

// Name returns "badger".
func (d *BadgerDriver) Name() string { return EngineBadger }

// Open opens the Badger database and records the schema version.
func (d *BadgerDriver) Open(ctx context.Context) (Durable, error) {
	if d.cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(d.cfg.Dir)
	opts.Logger = &badgerLogger{logger: d.logger}

	bc := d.cfg.Badger
	if bc.CacheSize > 0 {
		opts.BlockCacheSize = bc.CacheSize
	}
	if bc.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = bc.ValueLogFileSize
	}
	if bc.NumMemtables > 0 {
		opts.NumMemtables = bc.NumMemtables
	}
	opts.SyncWrites = bc.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaSchemaKey, []byte(SchemaVersion))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badger: write schema version: %w", err)
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    bc,
		sealer: d.cfg.Sealer,
		logger: d.logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if d.Registerer != nil {
		b.registerMetrics(d.Registerer)
	}

	go b.gcLoop()

	d.logger.Info("badger backend opened",
		"dir", d.cfg.Dir,
		"cache_size", bc.CacheSize,
		"gc_interval", bc.GCInterval)

	return b, nil
}

// Destroy removes the database directory.
func (d *BadgerDriver) Destroy(ctx context.Context) error {
	if d.cfg.Dir == "" {
		return fmt.Errorf("badger: dir is required")
	}
	if err := os.RemoveAll(d.cfg.Dir); err != nil {
		return fmt.Errorf("badger: remove %s: %w", d.cfg.Dir, err)
	}
	return nil
}

// BadgerBackend stores records under "<collection>/<id>" keys.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	sealer ValueSealer
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime       atomic.Int64 // Unix milliseconds
	gcBytesReclaimed atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

func recordKey(c domain.Collection, id string) []byte {
	return []byte(string(c) + "/" + id)
}

func collectionPrefix(c domain.Collection) []byte {
	return []byte(string(c) + "/")
}

// Get retrieves a record. A missing record yields (nil, nil).
func (b *BadgerBackend) Get(ctx context.Context, c domain.Collection, id string) (domain.Record, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if !c.Valid() {
		return nil, domain.ErrUnknownCollection.WithDetails(string(c))
	}

	key := recordKey(c, id)
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger: get %s: %w", key, err)
	}
	if value == nil {
		return nil, nil
	}
	return openValue(b.sealer, key, value)
}

// Put upserts a record keyed by its id.
func (b *BadgerBackend) Put(ctx context.Context, c domain.Collection, rec domain.Record) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}
	id, err := rec.ID()
	if err != nil {
		return err
	}

	key := recordKey(c, id)
	value, err := sealValue(b.sealer, key, rec)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger: put %s: %w", key, err)
	}
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (b *BadgerBackend) Delete(ctx context.Context, c domain.Collection, id string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}

	key := recordKey(c, id)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger: delete %s: %w", key, err)
	}
	return nil
}

// ListKeys returns the ids stored in c in key order.
func (b *BadgerBackend) ListKeys(ctx context.Context, c domain.Collection) ([]string, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if !c.Valid() {
		return []string{}, nil
	}

	prefix := collectionPrefix(c)
	keys := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Only need keys
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list %s: %w", c, err)
	}
	return keys, nil
}

// Clear removes every record of c.
func (b *BadgerBackend) Clear(ctx context.Context, c domain.Collection) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}
	if err := b.db.DropPrefix(collectionPrefix(c)); err != nil {
		return fmt.Errorf("badger: clear %s: %w", c, err)
	}
	return nil
}

// GC runs value-log GC until Badger reports nothing left to rewrite.
// Returns bytes reclaimed (approximate).
func (b *BadgerBackend) GC(ctx context.Context) (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	startTime := time.Now()

	var totalReclaimed uint64
	for {
		if err := ctx.Err(); err != nil {
			return totalReclaimed, err
		}
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return totalReclaimed, fmt.Errorf("gc: %w", err)
		}
		// Badger does not report exact reclaimed bytes
		totalReclaimed += 1 << 20
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcBytesReclaimed.Add(totalReclaimed)

	b.logger.Debug("gc completed",
		"bytes_reclaimed", totalReclaimed,
		"elapsed", time.Since(startTime))

	return totalReclaimed, nil
}

// Close stops the GC loop and closes the database.
func (b *BadgerBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.stopCh)
	<-b.doneCh

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	b.logger.Info("badger backend closed")
	return nil
}

// registerMetrics exposes database size through gauge functions.
// A second open in the same process keeps the first registration.
func (b *BadgerBackend) registerMetrics(reg prometheus.Registerer) {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if b.closed.Load() {
				return 0
			}
			lsm, vlog := b.db.Size()
			return float64(pick(lsm, vlog))
		}
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "canvasvault",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "canvasvault",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "canvasvault",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last Badger GC run",
		}, func() float64 { return float64(b.lastGCTime.Load()) / 1000.0 }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				b.logger.Warn("register badger metric failed", "error", err)
			}
		}
	}
}

// gcLoop runs periodic garbage collection.
func (b *BadgerBackend) gcLoop() {
	defer close(b.doneCh)

	interval := b.cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
