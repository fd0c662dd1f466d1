package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/yndnr/canvasvault/internal/infra/buildinfo"
	"github.com/yndnr/canvasvault/internal/infra/confloader"
	"github.com/yndnr/canvasvault/internal/infra/shutdown"
	"github.com/yndnr/canvasvault/internal/infra/tlsroots"
	"github.com/yndnr/canvasvault/internal/server/config"
	"github.com/yndnr/canvasvault/internal/server/httpserver"
	"github.com/yndnr/canvasvault/internal/server/httpserver/handler"
	"github.com/yndnr/canvasvault/internal/server/localserver"
	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/internal/storage/snapshot"
	"github.com/yndnr/canvasvault/internal/telemetry/logger"
	"github.com/yndnr/canvasvault/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("canvasvault-server " + buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Setup(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    os.Stdout,
		AddSource: cfg.Log.AddSource,
	})

	info := buildinfo.Get()
	log.Info("starting canvasvault-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	reg := metric.NewRegistry()

	engine, err := initStorage(cfg, reg, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	backups, err := snapshot.NewManager(cfg.SnapshotConfig())
	if err != nil {
		engine.Close()
		return fmt.Errorf("init snapshots: %w", err)
	}

	api := handler.New(handler.Config{
		Store:     engine,
		Codec:     snapshot.NewCodec(snapshot.WithLogger(log), snapshot.WithMetrics(reg)),
		Backups:   backups,
		ResetFlag: storage.NewFileResetFlag(cfg.ResetFlagPath()),
		Metrics:   reg,
		Logger:    log,
	})

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = reg.Handler()
	}

	httpCfg := cfg.Server.HTTP
	router := httpserver.NewRouter(httpserver.RouterConfig{
		API:                api,
		Metrics:            metricsHandler,
		MetricsPath:        cfg.Metrics.Path,
		Logger:             log,
		RateLimit:          httpCfg.RateLimit,
		RateBurst:          httpCfg.RateBurst,
		MaxBodyBytes:       httpCfg.MaxBodyBytes,
		CORSAllowedOrigins: httpCfg.CORSAllowedOrigins,
	})

	// Hooks run in reverse order of registration.
	shutdownHandler := shutdown.NewHandler(httpCfg.ShutdownTimeout, log)
	shutdownHandler.OnShutdown("storage", func(ctx context.Context) error {
		log.Info("closing storage engine")
		return engine.Close()
	})

	tlsConfig, err := initTLS(httpCfg, shutdownHandler, log)
	if err != nil {
		engine.Close()
		return fmt.Errorf("init tls: %w", err)
	}

	server := httpserver.New(httpserver.Config{
		Addr:         httpCfg.Addr,
		TLS:          tlsConfig,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
	}, router)

	ln, err := net.Listen("tcp", httpCfg.Addr)
	if err != nil {
		engine.Close()
		return fmt.Errorf("listen %s: %w", httpCfg.Addr, err)
	}
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	reload := func() error { return reloadConfig(*configFile, log) }

	if path := cfg.Server.Local.SocketPath; path != "" {
		local := localserver.New(path, localserver.NewHandler(
			httpserver.NewRouter(httpserver.RouterConfig{API: api, Logger: log}),
			localserver.Actions{Reload: reload, Shutdown: shutdownHandler.Trigger},
			log,
		), log)
		if err := local.Listen(); err != nil {
			ln.Close()
			engine.Close()
			return fmt.Errorf("local socket: %w", err)
		}
		shutdownHandler.OnShutdown("local socket", func(ctx context.Context) error {
			return local.Shutdown(ctx)
		})
		go func() {
			if err := local.Serve(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
	}

	if *configFile != "" {
		if err := watchConfig(*configFile, reload, shutdownHandler, log); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	go func() {
		log.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"tls", tlsConfig != nil,
			"mtls", httpCfg.TLSClientCAFile != "")
		if err := server.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// initStorage opens the failover engine. A durable open failure is not an
// error: the engine keeps serving from memory and reports the downgrade.
func initStorage(cfg *config.ServerConfig, reg *metric.Registry, log *slog.Logger) (*storage.Engine, error) {
	kv, err := cfg.KVConfig()
	if err != nil {
		return nil, err
	}
	driver, err := storage.NewDriver(kv, log)
	if err != nil {
		return nil, err
	}
	if bd, ok := driver.(*storage.BadgerDriver); ok && cfg.Metrics.Enabled {
		bd.Registerer = reg.Registerer()
	}

	engine := storage.New(storage.Config{
		Driver:      driver,
		ResetFlag:   storage.NewFileResetFlag(cfg.ResetFlagPath()),
		OpenTimeout: cfg.Storage.OpenTimeout,
	},
		storage.WithLogger(log),
		storage.WithMetrics(reg),
		storage.WithStatusSink(storage.StatusSinkFunc(func(mode storage.Mode, cause error) {
			log.Warn("storage is running in memory; changes will be lost on restart",
				"mode", mode.String(),
				"error", cause)
		})),
	)

	mode := engine.Open(context.Background())
	log.Info("storage ready",
		"engine", driver.Name(),
		"dir", kv.Dir,
		"mode", mode.String(),
		"encrypted", kv.Sealer != nil)
	return engine, nil
}

// initTLS returns nil when TLS is not configured. The certificate pair
// is reloaded whenever the files change on disk.
func initTLS(cfg config.HTTPConfig, sh *shutdown.Handler, log *slog.Logger) (*tls.Config, error) {
	if cfg.TLSCertFile == "" {
		return nil, nil
	}
	watcher, err := tlsroots.NewWatcher(cfg.TLSCertFile, cfg.TLSKeyFile, tlsroots.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var clientCAs *x509.CertPool
	if cfg.TLSClientCAFile != "" {
		if clientCAs, err = tlsroots.LoadPool(cfg.TLSClientCAFile); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Warn("certificate watcher stopped", "error", err)
		}
	}()
	sh.OnShutdown("certificate watcher", func(context.Context) error {
		cancel()
		watcher.Stop()
		return nil
	})
	return tlsroots.ServerConfig(watcher, clientCAs), nil
}

// reloadConfig applies the settings that can change at runtime.
// Currently that is the log level.
func reloadConfig(path string, log *slog.Logger) error {
	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}
	if cfg.Log.Level != logger.GetLevel() {
		logger.SetLevel(cfg.Log.Level)
		log.Info("log level changed", "level", cfg.Log.Level)
	}
	return nil
}

// watchConfig reloads the configuration when the file changes.
func watchConfig(path string, reload func() error, sh *shutdown.Handler, log *slog.Logger) error {
	watcher, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	watcher.OnChange(func(changed string) {
		if err := reload(); err != nil {
			log.Warn("ignoring invalid configuration change", "path", changed, "error", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go watcher.Run(ctx)
	sh.OnShutdown("config watcher", func(context.Context) error {
		cancel()
		return watcher.Stop()
	})
	return nil
}
