// Package server provides process lifecycle management for the long-running
// binaries: signal handling, ordered resource cleanup and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/activitysink/activitysink/internal/logging"
)

// ShutdownManager turns SIGINT/SIGTERM into context cancellation and closes
// registered resources once the work loop has returned.
type ShutdownManager struct {
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	stop   func()

	once         sync.Once
	shuttingDown int32

	closers   []io.Closer
	closersMu sync.Mutex
}

// NewShutdownManager creates a manager whose Context is cancelled on the first
// SIGINT or SIGTERM, or when parent is done. timeout bounds Shutdown.
func NewShutdownManager(parent context.Context, timeout time.Duration, logger *slog.Logger) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}

	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(sigCtx)

	return &ShutdownManager{
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		stop:    stop,
	}
}

// Context is cancelled when shutdown begins.
func (sm *ShutdownManager) Context() context.Context {
	return sm.ctx
}

// RegisterCloser adds a closer to be called during shutdown.
// Closers are called in reverse order of registration.
func (sm *ShutdownManager) RegisterCloser(closer io.Closer) {
	sm.closersMu.Lock()
	defer sm.closersMu.Unlock()
	sm.closers = append(sm.closers, closer)
}

// IsShuttingDown reports whether Shutdown has been called or a signal arrived.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return atomic.LoadInt32(&sm.shuttingDown) == 1 || sm.ctx.Err() != nil
}

// Shutdown cancels the context and closes every registered resource.
// Only the first call does any work; later calls return nil.
func (sm *ShutdownManager) Shutdown(reason string) error {
	var shutdownErr error

	sm.once.Do(func() {
		atomic.StoreInt32(&sm.shuttingDown, 1)
		sm.logger.Info("shutting down", slog.String("reason", reason))
		sm.cancel()
		defer sm.stop()

		sm.closersMu.Lock()
		closers := sm.closers
		sm.closersMu.Unlock()

		done := make(chan error, 1)
		go func() {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i].Close(); err != nil {
					errs = append(errs, err)
				}
			}
			done <- errors.Join(errs...)
		}()

		select {
		case err := <-done:
			if err != nil {
				shutdownErr = fmt.Errorf("close failed: %w", err)
			}
		case <-time.After(sm.timeout):
			shutdownErr = fmt.Errorf("shutdown timed out after %v", sm.timeout)
		}
	})

	return shutdownErr
}

// MetricsServer serves /metrics and /health until shutdown.
type MetricsServer struct {
	server   *http.Server
	shutdown *ShutdownManager
	listener net.Listener
}

// NewMetricsServer builds the endpoint. /health answers 503 once shutdown starts.
func NewMetricsServer(addr string, metrics http.Handler, sm *ShutdownManager) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if sm.IsShuttingDown() {
			w.Header().Set("Connection", "close")
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdown: sm,
	}
}

// Start binds the listener and serves in the background. The server is
// registered with the shutdown manager.
func (ms *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", ms.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	ms.listener = ln
	ms.shutdown.RegisterCloser(CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ms.server.Shutdown(ctx)
	}))

	go func() {
		if err := ms.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ms.shutdown.logger.Error("metrics server stopped", logging.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (ms *MetricsServer) Addr() string {
	if ms.listener == nil {
		return ms.server.Addr
	}
	return ms.listener.Addr().String()
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
