package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/storage/memory"
	"github.com/yndnr/canvasvault/internal/telemetry/metric"
)

var errEngineClosed = domain.ErrBackendUnavailable.WithDetails("engine closed")

// DefaultOpenTimeout bounds how long Open waits for the durable backend.
const DefaultOpenTimeout = 3 * time.Second

// Mode identifies the backend currently serving requests.
type Mode int32

const (
	// ModeDurable routes calls to the durable backend.
	ModeDurable Mode = iota
	// ModeMemory routes calls to the in-memory fallback.
	ModeMemory
)

// String returns "durable" or "memory".
func (m Mode) String() string {
	if m == ModeMemory {
		return "memory"
	}
	return "durable"
}

// StatusSink is told when the engine switches to memory mode.
// It is called at most once per engine and never while a lock is held.
type StatusSink interface {
	StorageModeChanged(mode Mode, cause error)
}

// StatusSinkFunc adapts a function to StatusSink.
type StatusSinkFunc func(mode Mode, cause error)

// StorageModeChanged calls f.
func (f StatusSinkFunc) StorageModeChanged(mode Mode, cause error) { f(mode, cause) }

// Config configures an Engine.
type Config struct {
	// Driver opens the durable backend. Nil runs the engine in memory
	// mode from the start.
	Driver Driver

	// ResetFlag, when set, is consumed by Open.
	ResetFlag ResetFlag

	// OpenTimeout bounds the durable open.
	// Default: 3s
	OpenTimeout time.Duration
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithStatusSink sets the sink notified on downgrade.
func WithStatusSink(s StatusSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithMetrics sets the metrics registry.
func WithMetrics(r *metric.Registry) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is the storage facade. It serves every call from the durable
// backend while that backend works and from memory afterwards.
//
// Once the engine is in memory mode it never returns to durable mode.
type Engine struct {
	cfg    Config
	memory *memory.Store

	mu      sync.RWMutex
	mode    Mode
	durable Durable
	cause   error

	// rootMu guards rootSeeded, which applies the memory store's
	// seed-once root rule to the durable backend.
	rootMu     sync.Mutex
	rootSeeded bool

	sink    StatusSink
	metrics *metric.Registry
	logger  *slog.Logger
}

// New creates an engine in durable mode with no open backend. Call Open
// before use.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	e := &Engine{
		cfg:    cfg,
		memory: memory.New(),
		mode:   ModeDurable,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open consumes a pending reset request and opens the durable backend.
// It never fails: any problem leaves the engine in memory mode, which is
// what it returns.
func (e *Engine) Open(ctx context.Context) Mode {
	if e.cfg.Driver == nil {
		e.downgrade(domain.ErrBackendUnavailable.WithDetails("no durable driver configured"))
		return e.Mode()
	}

	e.consumeResetFlag(ctx)

	db, err := e.openWithTimeout(ctx)
	if err != nil {
		e.downgrade(err)
		return e.Mode()
	}

	e.mu.Lock()
	if e.mode == ModeMemory {
		e.mu.Unlock()
		db.Close()
		return ModeMemory
	}
	e.durable = db
	e.mu.Unlock()

	e.metrics.SetStorageMode(true)
	e.logger.Info("storage opened", "engine", e.cfg.Driver.Name(), "mode", ModeDurable.String())
	return ModeDurable
}

// consumeResetFlag destroys the durable database when a reset was
// requested. The flag is cleared whatever the outcome of the destroy.
func (e *Engine) consumeResetFlag(ctx context.Context) {
	if e.cfg.ResetFlag == nil {
		return
	}
	requested, err := e.cfg.ResetFlag.Requested()
	if err != nil {
		e.logger.Warn("read reset flag failed", "error", err)
		return
	}
	if !requested {
		return
	}

	if err := e.cfg.Driver.Destroy(ctx); err != nil {
		e.logger.Error("destroy durable database failed", "engine", e.cfg.Driver.Name(), "error", err)
	} else {
		e.logger.Warn("durable database destroyed on reset request", "engine", e.cfg.Driver.Name())
	}
	if err := e.cfg.ResetFlag.Clear(); err != nil {
		e.logger.Error("clear reset flag failed", "error", err)
	}
}

type openResult struct {
	db  Durable
	err error
}

// openWithTimeout races the driver open against OpenTimeout. A handle
// that arrives after the deadline is closed.
func (e *Engine) openWithTimeout(ctx context.Context) (Durable, error) {
	openCtx, cancel := context.WithTimeout(ctx, e.cfg.OpenTimeout)
	defer cancel()

	ch := make(chan openResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- openResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		db, err := e.cfg.Driver.Open(openCtx)
		ch <- openResult{db: db, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, domain.ErrBackendUnavailable.WithCause(res.err)
		}
		if res.db == nil {
			return nil, domain.ErrBackendUnavailable.WithDetails("driver returned no handle")
		}
		return res.db, nil
	case <-openCtx.Done():
		go func() {
			if res := <-ch; res.db != nil {
				res.db.Close()
			}
		}()
		if ctx.Err() != nil {
			return nil, domain.ErrBackendUnavailable.WithCause(ctx.Err())
		}
		return nil, domain.ErrBackendTimeout.WithDetails(e.cfg.OpenTimeout.String())
	}
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Cause returns the error that switched the engine to memory mode, or nil.
func (e *Engine) Cause() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cause
}

// DriverName returns the configured engine name, or "" without a driver.
func (e *Engine) DriverName() string {
	if e.cfg.Driver == nil {
		return ""
	}
	return e.cfg.Driver.Name()
}

// downgrade switches to memory mode. Only the first call has an effect.
func (e *Engine) downgrade(cause error) {
	e.mu.Lock()
	if e.mode == ModeMemory {
		e.mu.Unlock()
		return
	}
	e.mode = ModeMemory
	e.cause = cause
	e.mu.Unlock()

	e.logger.Warn("durable storage unavailable, switching to memory",
		"engine", e.DriverName(),
		"error", cause)
	e.metrics.SetStorageMode(false)
	e.metrics.IncFailover()

	if e.sink != nil {
		e.sink.StorageModeChanged(ModeMemory, cause)
	}
}

// durableHandle returns the backend to use, or nil for memory mode.
func (e *Engine) durableHandle() Durable {
	e.mu.RLock()
	mode, db := e.mode, e.durable
	e.mu.RUnlock()

	if mode == ModeMemory {
		return nil
	}
	if db == nil {
		e.downgrade(domain.ErrBackendUnavailable.WithDetails("durable backend not open"))
		return nil
	}
	return db
}

// callDurable runs fn and turns a panic into an error.
func callDurable(db Durable, fn func(Durable) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(db)
}

// route serves op from the durable backend, falling back to memory when
// the engine is in memory mode or the durable call fails. A call aborted
// by the caller's own context is returned as is and leaves the mode alone.
func (e *Engine) route(ctx context.Context, op string, c domain.Collection, durable func(Durable) error, fallback func() error) error {
	if db := e.durableHandle(); db != nil {
		err := callDurable(db, durable)
		if err == nil {
			e.metrics.ObserveStorageOp(string(c), op, ModeDurable.String())
			return nil
		}
		if callerCanceled(ctx, err) {
			return err
		}
		e.downgrade(fmt.Errorf("%s %s: %w", op, c, err))
	}
	e.metrics.ObserveStorageOp(string(c), op, ModeMemory.String())
	return fallback()
}

func callerCanceled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isRoot(c domain.Collection, id string) bool {
	return c == domain.CollectionNodes && id == domain.RootNodeID
}

// durableRoot completes a durable read of the root node. A root that has
// never existed during this session is seeded with the default and
// written back; once seeded or stored, a deleted root stays deleted until
// the nodes collection is cleared.
func (e *Engine) durableRoot(ctx context.Context, db Durable, rec domain.Record) (domain.Record, error) {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()

	if rec != nil {
		e.rootSeeded = true
		return rec, nil
	}
	if e.rootSeeded {
		return db.Get(ctx, domain.CollectionNodes, domain.RootNodeID)
	}

	def, _ := domain.DefaultRecord(domain.CollectionNodes, domain.RootNodeID)
	if err := db.Put(ctx, domain.CollectionNodes, def); err != nil {
		return nil, err
	}
	e.rootSeeded = true
	return def.Clone(), nil
}

func (e *Engine) setRootSeeded(v bool) {
	e.rootMu.Lock()
	e.rootSeeded = v
	e.rootMu.Unlock()
}

// Get returns the record (c, id), or nil when it does not exist.
func (e *Engine) Get(ctx context.Context, c domain.Collection, id string) (domain.Record, error) {
	if !c.Valid() {
		return nil, domain.ErrUnknownCollection.WithDetails(string(c))
	}

	var rec domain.Record
	err := e.route(ctx, "get", c,
		func(db Durable) error {
			var err error
			rec, err = db.Get(ctx, c, id)
			if err == nil && isRoot(c, id) {
				rec, err = e.durableRoot(ctx, db, rec)
			}
			return err
		},
		func() error {
			var err error
			rec, err = e.memory.Get(ctx, c, id)
			return err
		})
	return rec, err
}

// Put upserts rec into c under rec's id.
func (e *Engine) Put(ctx context.Context, c domain.Collection, rec domain.Record) error {
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}
	if _, err := rec.ID(); err != nil {
		return err
	}

	return e.route(ctx, "put", c,
		func(db Durable) error {
			if err := db.Put(ctx, c, rec); err != nil {
				return err
			}
			if c == domain.CollectionNodes {
				if id, _ := rec.ID(); id == domain.RootNodeID {
					e.setRootSeeded(true)
				}
			}
			return nil
		},
		func() error { return e.memory.Put(ctx, c, rec) })
}

// Delete removes (c, id). A missing record is not an error.
func (e *Engine) Delete(ctx context.Context, c domain.Collection, id string) error {
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}

	return e.route(ctx, "delete", c,
		func(db Durable) error { return db.Delete(ctx, c, id) },
		func() error { return e.memory.Delete(ctx, c, id) })
}

// ListKeys returns the ids stored in c. An unknown collection has no keys.
func (e *Engine) ListKeys(ctx context.Context, c domain.Collection) ([]string, error) {
	if !c.Valid() {
		return []string{}, nil
	}

	var keys []string
	err := e.route(ctx, "list", c,
		func(db Durable) error {
			var err error
			keys, err = db.ListKeys(ctx, c)
			return err
		},
		func() error {
			var err error
			keys, err = e.memory.ListKeys(ctx, c)
			return err
		})
	if keys == nil {
		keys = []string{}
	}
	return keys, err
}

// Clear removes every record of c.
func (e *Engine) Clear(ctx context.Context, c domain.Collection) error {
	if !c.Valid() {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}

	return e.route(ctx, "clear", c,
		func(db Durable) error {
			if err := db.Clear(ctx, c); err != nil {
				return err
			}
			if c == domain.CollectionNodes {
				e.setRootSeeded(false)
			}
			return nil
		},
		func() error { return e.memory.Clear(ctx, c) })
}

// GetOrDefault returns the record (c, id), or the built-in default theme
// when none is stored. The root node follows Get: it is seeded on first
// read and a root deleted afterwards reads as nil.
func (e *Engine) GetOrDefault(ctx context.Context, c domain.Collection, id string) (domain.Record, error) {
	rec, err := e.Get(ctx, c, id)
	if err != nil || rec != nil || isRoot(c, id) {
		return rec, err
	}
	if def, ok := domain.DefaultRecord(c, id); ok {
		return def, nil
	}
	return nil, nil
}

// GetNode returns the node stored under id, or nil.
func (e *Engine) GetNode(ctx context.Context, id string) (domain.Record, error) {
	return e.Get(ctx, domain.CollectionNodes, id)
}

// GetRoot returns the root node, seeding it on first read.
func (e *Engine) GetRoot(ctx context.Context) (domain.Record, error) {
	return e.GetOrDefault(ctx, domain.CollectionNodes, domain.RootNodeID)
}

// SaveNode stores a node record.
func (e *Engine) SaveNode(ctx context.Context, rec domain.Record) error {
	return e.Put(ctx, domain.CollectionNodes, rec)
}

// GetTheme returns the theme, or the default theme when none is stored.
func (e *Engine) GetTheme(ctx context.Context) (*domain.Theme, error) {
	rec, err := e.GetOrDefault(ctx, domain.CollectionTheme, domain.ThemeID)
	if err != nil {
		return nil, err
	}
	var theme domain.Theme
	if err := rec.Decode(&theme); err != nil {
		return nil, err
	}
	return &theme, nil
}

// SaveTheme stores the theme under the fixed theme id.
func (e *Engine) SaveTheme(ctx context.Context, theme *domain.Theme) error {
	t := *theme
	t.ID = domain.ThemeID
	rec, err := domain.NewRecord(&t)
	if err != nil {
		return err
	}
	return e.Put(ctx, domain.CollectionTheme, rec)
}

// GetImage returns the image payload stored under id. The boolean is false
// when no image exists.
func (e *Engine) GetImage(ctx context.Context, id string) (string, bool, error) {
	rec, err := e.Get(ctx, domain.CollectionImages, id)
	if err != nil || rec == nil {
		return "", false, err
	}
	var img domain.Image
	if err := rec.Decode(&img); err != nil {
		return "", false, err
	}
	return img.Data, true, nil
}

// SaveImage stores an image payload under id.
func (e *Engine) SaveImage(ctx context.Context, id, data string) error {
	rec, err := domain.NewRecord(&domain.Image{ID: id, Data: data})
	if err != nil {
		return err
	}
	return e.Put(ctx, domain.CollectionImages, rec)
}

// DeleteImage removes the image stored under id.
func (e *Engine) DeleteImage(ctx context.Context, id string) error {
	return e.Delete(ctx, domain.CollectionImages, id)
}

// Close closes the durable backend if one is open. Calls made after Close
// are served from memory without a mode-change notification.
func (e *Engine) Close() error {
	e.mu.Lock()
	db := e.durable
	e.durable = nil
	if e.mode == ModeDurable {
		e.mode = ModeMemory
		e.cause = errEngineClosed
	}
	e.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}
