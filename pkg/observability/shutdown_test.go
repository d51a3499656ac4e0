package observability

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_RunsFunctions(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)

	var calls int32
	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}
	sm.RegisterShutdownFunc(nil)

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(nil, nil, time.Second)
	boom := errors.New("close failed")
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return boom })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "1 errors")
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.EqualError(t, sm.Shutdown(ctx), "shutdown timeout reached")
}

func TestShutdownManager_StopsServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), server, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForShutdown(ctx))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}
