package audit

import (
	"context"
	"fmt"
	"sync"
)

// MultiLogger fans events out to several loggers
type MultiLogger struct {
	loggers []Logger
	async   bool
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a synchronous multi-logger
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		errChan: make(chan error, len(loggers)),
	}
}

// SetAsync makes Log return immediately and deliver in the background
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Log implements Logger. In sync mode the first failure is returned after
// every logger has been tried.
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	if m.async {
		for _, logger := range m.loggers {
			m.wg.Add(1)
			go func(l Logger) {
				defer m.wg.Done()
				if err := l.Log(ctx, event); err != nil {
					select {
					case m.errChan <- err:
					default:
					}
				}
			}(logger)
		}
		return nil
	}

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Wait blocks until pending async deliveries finish
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// Errors drains errors collected from async deliveries
func (m *MultiLogger) Errors() []error {
	var errs []error
	for {
		select {
		case err := <-m.errChan:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

// Close waits for pending deliveries and closes every logger
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close logger: %w", err)
		}
	}
	return firstErr
}
