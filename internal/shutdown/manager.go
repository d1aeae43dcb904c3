package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

// ErrTimeout is returned when services are still stopping after the timeout.
var ErrTimeout = errors.New("shutdown timeout exceeded")

// Manager stops registered services in parallel within one timeout.
type Manager struct {
	services []domain.GracefulShutdownInterface
	timeout  time.Duration
	mu       sync.RWMutex
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		services: make([]domain.GracefulShutdownInterface, 0),
		timeout:  timeout,
	}
}

func (m *Manager) Register(service domain.GracefulShutdownInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services = append(m.services, service)
	logutils.Log.WithField("service", service.Name()).Info("Service registered for graceful shutdown")
}

// WaitForShutdown blocks until SIGINT, SIGTERM or SIGHUP arrives or ctx is done, then shuts down.
func (m *Manager) WaitForShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	<-ctx.Done()
	logutils.Log.WithField("cause", context.Cause(ctx)).Info("Received shutdown signal")
	return m.Shutdown()
}

func (m *Manager) Shutdown() error {
	logutils.Log.Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.RLock()
	services := make([]domain.GracefulShutdownInterface, len(m.services))
	copy(services, m.services)
	m.mu.RUnlock()

	errChan := make(chan error, len(services))
	var wg sync.WaitGroup

	for _, service := range services {
		wg.Add(1)
		go func(svc domain.GracefulShutdownInterface) {
			defer wg.Done()

			logutils.Log.WithField("service", svc.Name()).Info("Shutting down service")
			if err := svc.Shutdown(ctx); err != nil {
				logutils.Log.WithError(err).WithField("service", svc.Name()).Error("Error during service shutdown")
				errChan <- fmt.Errorf("service %s shutdown failed: %w", svc.Name(), err)
				return
			}
			logutils.Log.WithField("service", svc.Name()).Info("Service shutdown completed")
		}(service)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logutils.Log.Warn("Shutdown timeout exceeded, forcing shutdown")
		return ErrTimeout
	}

	close(errChan)
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logutils.Log.WithField("error_count", len(errs)).Error("Some services failed to shutdown gracefully")
		return errors.Join(errs...)
	}

	logutils.Log.Info("Graceful shutdown completed successfully")
	return nil
}
