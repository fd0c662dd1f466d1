package tlsroots

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce delays a reload until writes to the pair settle.
	DefaultDebounce = 500 * time.Millisecond

	// ExpiryWarning is how close to NotAfter a loaded certificate starts
	// producing warnings.
	ExpiryWarning = 14 * 24 * time.Hour
)

// Watcher holds the server certificate and reloads it when the certificate
// or key file changes. A failed reload keeps the previous certificate.
type Watcher struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]
	logger   *slog.Logger
	debounce time.Duration
	now      func() time.Time

	mu       sync.Mutex
	onReload []func(*tls.Certificate)

	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the key pair. It fails when the initial load fails.
func NewWatcher(certFile, keyFile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return w, nil
}

// GetCertificate returns the current certificate.
// This implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return w.cert.Load(), nil
}

// NotAfter returns the expiry of the current leaf certificate.
func (w *Watcher) NotAfter() time.Time {
	if c := w.cert.Load(); c != nil && c.Leaf != nil {
		return c.Leaf.NotAfter
	}
	return time.Time{}
}

// OnReload registers a callback run after every successful reload.
func (w *Watcher) OnReload(fn func(*tls.Certificate)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Reload reads the key pair from disk and swaps it in.
func (w *Watcher) Reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}
	w.cert.Store(&cert)

	if cert.Leaf != nil {
		remaining := cert.Leaf.NotAfter.Sub(w.now())
		attrs := []any{"cert_file", w.certFile, "not_after", cert.Leaf.NotAfter}
		switch {
		case remaining <= 0:
			w.logger.Error("certificate has expired", attrs...)
		case remaining < ExpiryWarning:
			w.logger.Warn("certificate expires soon", attrs...)
		default:
			w.logger.Info("certificate loaded", attrs...)
		}
	}

	w.mu.Lock()
	callbacks := append([]func(*tls.Certificate){}, w.onReload...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(&cert)
	}
	return nil
}

// Run watches the directories of the certificate and key until ctx is
// done or Stop is called. Directories are watched rather than files so
// that replace-by-rename deployments are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer fsw.Close()

	dirs := map[string]bool{filepath.Dir(w.certFile): true, filepath.Dir(w.keyFile): true}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}
	names := map[string]bool{filepath.Base(w.certFile): true, filepath.Base(w.keyFile): true}

	w.logger.Info("certificate watcher started", "cert_file", w.certFile, "key_file", w.keyFile)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !names[filepath.Base(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			if err := w.Reload(); err != nil {
				w.logger.Error("certificate reload failed, keeping previous certificate",
					"error", err,
					"cert_file", w.certFile)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)

		case <-ctx.Done():
			return nil
		case <-w.stop:
			return nil
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}
