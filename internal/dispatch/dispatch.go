package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/evernotelocal/qstore/internal/storage/sqlite"
	"github.com/evernotelocal/qstore/internal/types"
)

// dispatchTracer spans every write task the same way dispatchMetrics
// instruments it: registered against the global delegating provider at init
// time, so it forwards to a real provider once telemetry.InitTracing runs.
var dispatchTracer = otel.Tracer("github.com/evernotelocal/qstore/internal/dispatch")

// dispatchMetrics holds the OTel instruments recording writer activity.
// Instruments are registered against the global delegating provider at init
// time, so they forward to a real provider once telemetry.Init runs.
var dispatchMetrics struct {
	writesSubmitted metric.Int64Counter
	writeRetries    metric.Int64Counter
	writeDurationMs metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/evernotelocal/qstore/internal/dispatch")
	dispatchMetrics.writesSubmitted, _ = m.Int64Counter("qstore.dispatch.writes_submitted",
		metric.WithDescription("Write tasks enqueued on the single writer goroutine"),
		metric.WithUnit("{write}"),
	)
	dispatchMetrics.writeRetries, _ = m.Int64Counter("qstore.dispatch.write_retries",
		metric.WithDescription("Write tasks retried after a transient SQLITE_BUSY/LOCKED failure"),
		metric.WithUnit("{retry}"),
	)
	dispatchMetrics.writeDurationMs, _ = m.Float64Histogram("qstore.dispatch.write_duration_ms",
		metric.WithDescription("Time a write task spent running, including retries"),
		metric.WithUnit("ms"),
	)
}

// writeTask is a queued write closure plus the Future it must resolve.
type writeTask struct {
	run     func() (any, error)
	resolve func(any, error)
}

// Options controls a Dispatcher's reader-pool size. The writer's retry
// policy is fixed inside the writer loop and is not configurable here.
type Options struct {
	// ReaderPoolSize bounds concurrent read tasks; 0 means unbounded.
	ReaderPoolSize int64
}

// Dispatcher owns a bounded reader pool and a single serialized writer
// goroutine, giving every mutating call to SQLite FIFO ordering while
// letting reads run concurrently (spec.md §4.2).
type Dispatcher struct {
	sem    *semaphore.Weighted
	writes chan writeTask
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// New starts a Dispatcher's writer goroutine and returns it ready to accept
// work. Close must be called to stop the writer and release queued tasks.
func New(opts Options) *Dispatcher {
	size := opts.ReaderPoolSize
	if size <= 0 {
		size = 1 << 20 // effectively unbounded
	}
	d := &Dispatcher{
		sem:    semaphore.NewWeighted(size),
		writes: make(chan writeTask, 64),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.runWriter()
	return d
}

// SubmitRead runs fn on the bounded reader pool and returns a Future for
// its result. Multiple reads may run concurrently, bounded by
// Options.ReaderPoolSize.
func SubmitRead[T any](ctx context.Context, d *Dispatcher, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	select {
	case <-d.done:
		resolveDestroyed(f)
		return f
	default:
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		f.resolve(zeroValue[T](), err)
		return f
	}
	go func() {
		defer d.sem.Release(1)
		select {
		case <-d.done:
			resolveDestroyed(f)
			return
		default:
		}
		val, err := fn(ctx)
		f.resolve(val, err)
	}()
	return f
}

// SubmitWrite enqueues fn on the single writer goroutine and returns a
// Future for its result. Writes run strictly one at a time, in submission
// order, matching spec.md §4.1's single-writer invariant.
func SubmitWrite[T any](ctx context.Context, d *Dispatcher, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	task := writeTask{
		run: func() (any, error) { return fn(ctx) },
		resolve: func(v any, err error) {
			if err != nil {
				f.resolve(zeroValue[T](), err)
				return
			}
			f.resolve(v.(T), err)
		},
	}
	select {
	case d.writes <- task:
		dispatchMetrics.writesSubmitted.Add(ctx, 1)
	case <-d.done:
		resolveDestroyed(f)
	case <-ctx.Done():
		f.resolve(zeroValue[T](), ctx.Err())
	}
	return f
}

// runWriter drains the write queue one task at a time, retrying a task's
// underlying failure with exponential backoff only when it looks like a
// transient SQLITE_BUSY/LOCKED condition -- the writer already serializes
// every mutation from this process, so contention can only come from
// another process holding the file lock.
func (d *Dispatcher) runWriter() {
	defer d.wg.Done()
	for {
		// Check done first, non-blocking: once Close has fired, a plain
		// two-case select could otherwise pick the writes case just as
		// often as done when both are ready, leaving Close's "every
		// queued write resolves with ErrHandlerDestroyed" guarantee to
		// chance.
		select {
		case <-d.done:
			d.drain()
			return
		default:
		}
		select {
		case task, ok := <-d.writes:
			if !ok {
				return
			}
			d.runWithRetry(task)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) runWithRetry(task writeTask) {
	ctx, span := dispatchTracer.Start(context.Background(), "dispatch.write")
	defer span.End()

	start := time.Now()
	var val any
	attempts := 0
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	// backoff.Retry unwraps a backoff.Permanent error back to its
	// original cause before returning, so err below is always the task's
	// real error, never a *backoff.PermanentError wrapper.
	err := backoff.Retry(func() error {
		attempts++
		v, err := task.run()
		if err != nil && sqlite.IsBusyOrLocked(err) {
			return err
		}
		val = v
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)

	if attempts > 1 {
		dispatchMetrics.writeRetries.Add(ctx, int64(attempts-1))
	}
	dispatchMetrics.writeDurationMs.Record(ctx, float64(time.Since(start).Milliseconds()))
	span.SetAttributes(attribute.Int("qstore.dispatch.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	task.resolve(val, err)
}

// drain resolves every task still sitting in the write queue with
// ErrHandlerDestroyed, never touching the database, matching spec.md
// §4.2/§5's "handler destroyed" contract.
func (d *Dispatcher) drain() {
	for {
		select {
		case task := <-d.writes:
			task.resolve(nil, types.ErrHandlerDestroyed)
		default:
			return
		}
	}
}

// Close stops accepting new work and resolves every queued-but-unrun write
// with ErrHandlerDestroyed. It waits up to 5s for the writer goroutine to
// notice and exit.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	waitDone := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		log.Printf("dispatch: writer goroutine did not exit within timeout")
	}
}

func zeroValue[T any]() T {
	var zero T
	return zero
}
