package xrun

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errService = errors.New("service failed")

func TestGroup_Wait_FirstErrorCancelsOthers(t *testing.T) {
	// Given
	g, _ := NewGroup(context.Background(), WithName("test"))
	var stopped atomic.Bool

	// When
	g.Go("blocker", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	})
	g.Go("failer", func(context.Context) error { return errService })

	// Then
	assert.ErrorIs(t, g.Wait(), errService)
	assert.True(t, stopped.Load())
}

func TestGroup_Wait_AllSucceed(t *testing.T) {
	g, ctx := NewGroup(context.Background())
	g.Go("a", func(context.Context) error { return nil })
	g.Go("b", func(context.Context) error { return nil })

	require.NoError(t, g.Wait())
	assert.Error(t, ctx.Err(), "group ctx is released after Wait")
}

func TestGroup_Cancel(t *testing.T) {
	cause := errors.New("config invalid")

	g, _ := NewGroup(context.Background())
	g.Go("blocker", func(ctx context.Context) error { <-ctx.Done(); return nil })
	g.Cancel(cause)
	assert.ErrorIs(t, g.Wait(), cause)

	g2, _ := NewGroup(context.Background())
	g2.Go("blocker", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() })
	g2.Cancel(nil)
	assert.NoError(t, g2.Wait())
}

func TestGroup_Go_NilFunc(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go("nil", nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)
}

func TestRun_SignalStopsServices(t *testing.T) {
	// Given
	sigCh := make(chan os.Signal, 1)
	testSigChan = sigCh
	t.Cleanup(func() { testSigChan = nil })

	started := make(chan struct{})
	var cause error

	// When
	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), nil, Named("worker", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			cause = context.Cause(ctx)
			return nil
		}))
	}()
	<-started
	sigCh <- syscall.SIGTERM

	// Then
	require.NoError(t, <-done)
	var sigErr *SignalError
	require.ErrorAs(t, cause, &sigErr)
	assert.Equal(t, syscall.SIGTERM, sigErr.Signal)
	assert.Contains(t, sigErr.Error(), "terminated")
}

func TestRun_WithoutSignalHandler(t *testing.T) {
	err := Run(context.Background(), []Option{WithoutSignalHandler()},
		Named("once", func(context.Context) error { return errService }))
	assert.ErrorIs(t, err, errService)
}

func TestRun_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, []Option{WithSignals(syscall.SIGUSR1)},
		Named("blocker", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }))
	assert.NoError(t, err)
}

// =============================================================================
// HTTPServer / Ticker
// =============================================================================

type fakeServer struct {
	closed   chan struct{}
	shutdown atomic.Bool
	listen   error
}

func newFakeServer() *fakeServer { return &fakeServer{closed: make(chan struct{})} }

func (s *fakeServer) ListenAndServe() error {
	if s.listen != nil {
		return s.listen
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.shutdown.Store(true)
	close(s.closed)
	return nil
}

func TestHTTPServer_ShutdownOnCancel(t *testing.T) {
	srv := newFakeServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- HTTPServer(srv, time.Second)(ctx) }()

	cancel()

	require.NoError(t, <-done)
	assert.True(t, srv.shutdown.Load())
}

func TestHTTPServer_ListenError(t *testing.T) {
	listenErr := errors.New("address already in use")
	srv := &fakeServer{listen: listenErr}

	err := HTTPServer(srv, time.Second)(context.Background())

	assert.ErrorIs(t, err, listenErr)
	assert.False(t, srv.shutdown.Load())
}

func TestHTTPServer_NilServer(t *testing.T) {
	assert.ErrorIs(t, HTTPServer(nil, time.Second)(context.Background()), ErrNilServer)
}

func TestTicker_CallsUntilError(t *testing.T) {
	var calls atomic.Int32
	err := Ticker(time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 3 {
			return errService
		}
		return nil
	})(context.Background())

	assert.ErrorIs(t, err, errService)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTicker_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, Ticker(0, func(context.Context) error { return nil })(ctx), ErrInvalidInterval)
	assert.ErrorIs(t, Ticker(time.Second, nil)(ctx), ErrNilFunc)
}
