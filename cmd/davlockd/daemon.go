package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/davhttp"
	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/lock/sqlstore"
	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/server"
	"github.com/jathurchan/davlock/vfs"
)

// httpReadHeaderTimeout bounds how long a client may take to send headers.
const httpReadHeaderTimeout = 10 * time.Second

// daemon owns every long-lived component of a davlockd process.
type daemon struct {
	cfg Config
	log logger.Logger

	registry *prometheus.Registry
	store    *sqlstore.Store
	locks    lock.LockManager
	svc      *davfs.Service
	grpc     server.DavLockServer

	webdav     *http.Server
	webdavLis  net.Listener
	metrics    *http.Server
	metricsLis net.Listener
	serveErr   chan error
}

// newDaemon builds the filesystem tree, the lock manager (recovering
// persisted locks when a store is configured) and the servers. Nothing
// listens until start.
func newDaemon(ctx context.Context, cfg Config, log logger.Logger) (*daemon, error) {
	d := &daemon{
		cfg:      cfg,
		log:      log.WithComponent("davlockd"),
		registry: prometheus.NewRegistry(),
		serveErr: make(chan error, 2),
	}
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fsys, err := buildFilesystem(cfg, log)
	if err != nil {
		return nil, err
	}

	opts := append(cfg.Lock.lockOptions(),
		lock.WithLogger(log),
		lock.WithMetrics(lock.NewPrometheusMetrics(d.registry)),
	)
	if cfg.Store.Path != "" {
		d.store, err = sqlstore.Open(ctx, sqlstore.Config{
			Path:        cfg.Store.Path,
			BusyTimeout: cfg.Store.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, lock.WithStore(d.store))
	}
	d.locks = lock.NewLockManager(opts...)

	if d.store != nil {
		n, err := d.locks.Recover(ctx)
		if err != nil {
			d.closeLocks()
			return nil, fmt.Errorf("davlockd: recover locks: %w", err)
		}
		d.log.Infow("recovered persisted locks", "count", n, "store", cfg.Store.Path)
	}

	d.svc = davfs.NewService(fsys, d.locks, davfs.WithLogger(log))

	d.grpc, err = server.NewDavLockServerBuilder().
		WithService(d.svc).
		WithListenAddress(cfg.GRPC.Address).
		WithTimeouts(cfg.GRPC.RequestTimeout, cfg.GRPC.ShutdownTimeout).
		WithLimits(server.DefaultMaxRequestSize, server.DefaultMaxResponseSize, cfg.GRPC.MaxConcurrentRequests).
		WithRateLimit(cfg.GRPC.RateLimit.Enabled, cfg.GRPC.RateLimit.Requests, cfg.GRPC.RateLimit.Burst, cfg.GRPC.RateLimit.Window).
		WithLogger(log).
		WithMetrics(server.NewPrometheusServerMetrics(d.registry)).
		Build()
	if err != nil {
		d.svc.Close()
		d.closeLocks()
		return nil, err
	}

	if cfg.WebDAV.Address != "" {
		d.webdav = &http.Server{
			Handler: davhttp.NewHandler(d.svc,
				davhttp.WithPrefix(cfg.WebDAV.Prefix),
				davhttp.WithLogger(log),
			),
			ReadHeaderTimeout: httpReadHeaderTimeout,
		}
	}
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
		d.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: httpReadHeaderTimeout}
	}
	return d, nil
}

// buildFilesystem creates the root instance and attaches every mount in
// configuration order.
func buildFilesystem(cfg Config, log logger.Logger) (*vfs.Filesystem, error) {
	root, err := newInstance(cfg.Root, log)
	if err != nil {
		return nil, err
	}
	for _, m := range cfg.Mounts {
		child, err := newInstance(m.FilesystemConfig, log)
		if err != nil {
			return nil, err
		}
		if err := root.Mount(m.Path, child); err != nil {
			return nil, fmt.Errorf("davlockd: mount %s at %s: %w", m.Name, m.Path, err)
		}
		log.Infow("mounted filesystem", "name", m.Name, "path", m.Path, "readOnly", m.ReadOnly)
	}
	return root, nil
}

// newInstance creates one filesystem and seeds it from its manifest, if any.
func newInstance(fc FilesystemConfig, log logger.Logger) (*vfs.Filesystem, error) {
	fsys := vfs.NewFilesystem(fc.Name, vfs.WithReadOnly(fc.ReadOnly), vfs.WithLogger(log))
	if fc.Manifest == "" {
		return fsys, nil
	}
	f, err := os.Open(fc.Manifest)
	if err != nil {
		return nil, fmt.Errorf("davlockd: open manifest for %s: %w", fc.Name, err)
	}
	defer f.Close()
	if err := vfs.LoadManifest(fsys, f); err != nil {
		return nil, fmt.Errorf("davlockd: load manifest %s: %w", fc.Manifest, err)
	}
	return fsys, nil
}

// start opens every listener and begins serving.
func (d *daemon) start(ctx context.Context) error {
	if err := d.grpc.Start(ctx); err != nil {
		return err
	}
	d.log.Infow("gRPC server listening", "address", d.grpc.Addr().String())

	var err error
	if d.webdav != nil {
		if d.webdavLis, err = net.Listen("tcp", d.cfg.WebDAV.Address); err != nil {
			_ = d.stop(context.Background())
			return fmt.Errorf("davlockd: listen webdav on %s: %w", d.cfg.WebDAV.Address, err)
		}
		d.serve("webdav", d.webdav, d.webdavLis)
	}
	if d.metrics != nil {
		if d.metricsLis, err = net.Listen("tcp", d.cfg.Metrics.Address); err != nil {
			_ = d.stop(context.Background())
			return fmt.Errorf("davlockd: listen metrics on %s: %w", d.cfg.Metrics.Address, err)
		}
		d.serve("metrics", d.metrics, d.metricsLis)
	}
	return nil
}

func (d *daemon) serve(name string, srv *http.Server, lis net.Listener) {
	d.log.Infow("HTTP server listening", "server", name, "address", lis.Addr().String())
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.serveErr <- fmt.Errorf("davlockd: %s server: %w", name, err)
		}
	}()
}

// run starts the daemon and blocks until ctx is done or a server fails,
// then shuts everything down within the gRPC shutdown timeout.
func (d *daemon) run(ctx context.Context) error {
	if err := d.start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		d.log.Infow("shutting down")
	case runErr = <-d.serveErr:
		d.log.Errorw("server failed, shutting down", "error", runErr)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), d.cfg.GRPC.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, d.stop(stopCtx))
}

// stop shuts down the servers, then the lock manager and store.
func (d *daemon) stop(ctx context.Context) error {
	var errs []error
	if d.webdavLis != nil {
		if err := d.webdav.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("davlockd: stop webdav: %w", err))
		}
	}
	if d.metricsLis != nil {
		if err := d.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("davlockd: stop metrics: %w", err))
		}
	}
	if d.grpc.State() == server.ServerStateRunning {
		if err := d.grpc.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.svc.Close()
	if err := d.closeLocks(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *daemon) closeLocks() error {
	var errs []error
	if err := d.locks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("davlockd: close lock manager: %w", err))
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("davlockd: close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
