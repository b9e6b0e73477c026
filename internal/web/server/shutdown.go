package server

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

	"go.uber.org/zap"
)

// ShutdownHook is a function called during graceful shutdown
type ShutdownHook func(ctx context.Context) error

// GracefulShutdown serves until a signal arrives, then runs its hooks and
// drains the server
type GracefulShutdown struct {
	server  *Server
	timeout time.Duration
	signals []os.Signal
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []ShutdownHook

	once sync.Once
	done chan struct{}
	err  error
}

// NewGracefulShutdown creates a shutdown handler; a zero timeout means 30s
func NewGracefulShutdown(server *Server, timeout time.Duration, logger *zap.Logger) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GracefulShutdown{
		server:  server,
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// RegisterHook registers a hook to run before the server drains
func (gs *GracefulShutdown) RegisterHook(hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, hook)
}

// Run serves until ctx is done, a shutdown signal arrives or the server
// fails
func (gs *GracefulShutdown) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		gs.logger.Info("server listening", zap.String("addr", gs.server.Addr()))
		if err := gs.server.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, gs.signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		gs.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	return gs.Shutdown()
}

// Shutdown runs the hooks and drains the server, once
func (gs *GracefulShutdown) Shutdown() error {
	gs.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
		defer cancel()

		gs.mu.Lock()
		hooks := append([]ShutdownHook(nil), gs.hooks...)
		gs.mu.Unlock()

		for i, hook := range hooks {
			if err := hook(ctx); err != nil {
				gs.logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
			}
		}

		if err := gs.server.Shutdown(ctx); err != nil {
			gs.err = fmt.Errorf("server shutdown error: %w", err)
		} else {
			gs.logger.Info("server stopped")
		}
		close(gs.done)
	})

	<-gs.done
	return gs.err
}
