package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager stops the HTTP server and then runs registered cleanup
// functions, such as closing storage and flushing telemetry
type ShutdownManager struct {
	logger          *Logger
	server          *http.Server
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// NewShutdownManager creates a new shutdown manager. server may be nil.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NewLogger(InfoLevel, nil)
	}
	return &ShutdownManager{
		logger:          logger,
		server:          server,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown. Nil is ignored.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// WaitForShutdown blocks until SIGINT, SIGTERM or ctx is done, then shuts down
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)
	case <-ctx.Done():
		sm.logger.Info("Context cancelled, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()
	return sm.Shutdown(shutdownCtx)
}

// Shutdown stops the server, then runs the shutdown functions concurrently
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		sm.logger.Info("HTTP server shutdown complete")
	}

	sm.mu.Lock()
	funcs := append([]ShutdownFunc(nil), sm.shutdownFuncs...)
	sm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(funcs))

	for i, fn := range funcs {
		wg.Add(1)
		go func(index int, shutdownFn ShutdownFunc) {
			defer wg.Done()
			if err := shutdownFn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown function %d failed", index)
				errChan <- err
			}
		}(i, fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout reached")
	}

	close(errChan)
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
