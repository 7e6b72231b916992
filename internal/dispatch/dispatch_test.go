package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evernotelocal/qstore/internal/types"
)

func TestSubmitReadReturnsResult(t *testing.T) {
	d := New(Options{})
	defer d.Close()

	f := SubmitRead(context.Background(), d, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmitWriteRunsSerializedInOrder(t *testing.T) {
	d := New(Options{})
	defer d.Close()

	var order []int
	done := make(chan *Future[int], 10)
	for i := 0; i < 10; i++ {
		i := i
		done <- SubmitWrite(context.Background(), d, func(ctx context.Context) (int, error) {
			order = append(order, i)
			return i, nil
		})
	}
	close(done)
	for f := range done {
		_, err := f.Get(context.Background())
		require.NoError(t, err)
	}
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestSubmitWriteRetriesOnBusyThenSucceeds(t *testing.T) {
	d := New(Options{})
	defer d.Close()

	var attempts int32
	f := SubmitWrite(context.Background(), d, func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return "", errors.New("SQLITE_BUSY: database is locked")
		}
		return "ok", nil
	})
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestSubmitWriteDoesNotRetryNonTransientError(t *testing.T) {
	d := New(Options{})
	defer d.Close()

	var attempts int32
	wantErr := errors.New("constraint failed")
	f := SubmitWrite(context.Background(), d, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", wantErr
	})
	_, err := f.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr) || err.Error() == wantErr.Error())
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestCloseResolvesQueuedWritesWithHandlerDestroyed(t *testing.T) {
	d := New(Options{})

	block := make(chan struct{})
	first := SubmitWrite(context.Background(), d, func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})
	second := SubmitWrite(context.Background(), d, func(ctx context.Context) (int, error) {
		return 2, nil
	})

	closeDone := make(chan struct{})
	go func() {
		d.Close()
		close(closeDone)
	}()

	// Let Close observe the done channel and start draining, then release
	// the blocked first task so the writer loop can exit.
	time.Sleep(50 * time.Millisecond)
	close(block)

	_, err := first.Get(context.Background())
	require.NoError(t, err)

	_, err = second.Get(context.Background())
	assert.True(t, errors.Is(err, types.ErrHandlerDestroyed))

	<-closeDone
}

func TestFutureGetRespectsContextCancellation(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
