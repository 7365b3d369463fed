package xrun

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestGroup_FirstErrorCancelsOthers(t *testing.T) {
	g := NewGroup(context.Background())
	boom := errors.New("boom")

	var stopped atomic.Int32
	for range 3 {
		g.Go("waiter", func(ctx context.Context) error {
			err := blockUntilDone(ctx)
			stopped.Add(1)
			return err
		})
	}
	g.Go("failing", func(context.Context) error { return boom })

	err := g.Wait()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, int32(3), stopped.Load())
}

func TestGroup_CancelIsCleanShutdown(t *testing.T) {
	g := NewGroup(context.Background())
	g.Go("waiter", blockUntilDone)

	reason := errors.New("reload")
	g.Cancel(reason)
	require.NoError(t, g.Wait())
	assert.ErrorIs(t, context.Cause(g.Context()), reason)
}

func TestGroup_NilFuncAndNilContext(t *testing.T) {
	//nolint:staticcheck // nil ctx 退化为 Background
	g := NewGroup(nil)
	g.Go("nothing", nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)
}

func TestGroup_PanicBecomesError(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	g := NewGroup(context.Background(), WithLogger(logger), WithName("xvoice"))
	g.Go("crashy", func(context.Context) error { panic("bad state") })

	err = g.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad state")
	assert.Contains(t, buf.String(), "service panicked")
	assert.Contains(t, buf.String(), "xvoice")
}

func TestRun_AllServicesFinish(t *testing.T) {
	sig := make(chan os.Signal)
	var ran atomic.Int32
	task := func(context.Context) error {
		ran.Add(1)
		return nil
	}

	err := Run(context.Background(), []Option{withSignalSource(sig)},
		Named("a", task), Named("b", task))
	require.NoError(t, err)
	assert.Equal(t, int32(2), ran.Load())
}

func TestRun_SignalStopsServices(t *testing.T) {
	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), []Option{withSignalSource(sig)},
			Named("http", blockUntilDone), Named("watch", blockUntilDone))
	}()

	sig <- syscall.SIGTERM

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSignal)
		var se *SignalError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, syscall.SIGTERM, se.Signal)
		assert.Contains(t, se.Error(), "terminated")
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on signal")
	}
}

func TestRun_ParentCancelIsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Option{WithoutSignalHandler()}, Named("http", blockUntilDone))
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on ctx cancel")
	}
}

func TestRun_ServiceErrorWins(t *testing.T) {
	boom := errors.New("listen failed")
	err := Run(context.Background(), []Option{WithoutSignalHandler()},
		Named("http", func(context.Context) error { return boom }),
		Named("stats", blockUntilDone),
		Named("broken", nil),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom) || errors.Is(err, ErrNilFunc))
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithName(""), WithLogger(nil), WithSignals(syscall.SIGUSR1), nil,
	} {
		if opt != nil {
			opt(o)
		}
	}
	assert.Equal(t, "xrun", o.name)
	assert.NotNil(t, o.logger)
	assert.Equal(t, []os.Signal{syscall.SIGUSR1}, o.signals)
	assert.Len(t, DefaultSignals(), 4)
}
