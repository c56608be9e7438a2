package table

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
)

// Default batcher sizing
const (
	DefaultMaxBuffered   = 1024
	DefaultFlushInterval = 50 * time.Millisecond
)

// BatcherConfig configures a Batcher.
type BatcherConfig struct {
	// MaxBuffered triggers an immediate flush when the buffer reaches this
	// many mutations. Defaults to DefaultMaxBuffered.
	MaxBuffered int
	// FlushInterval bounds how long a mutation sits in the buffer before a
	// time-based flush. Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
	// Durability is stamped onto every submitted mutation.
	Durability Durability
	// OnFailure receives batches that failed to flush. Optional.
	OnFailure FailureListener
	// OnFlush receives batches after a successful flush. Optional; used to
	// feed downstream consumers.
	OnFlush func(tableName string, muts []Mutation)
	// Logger defaults to the process default logger.
	Logger logging.Logger
	// Metrics receives batcher instrumentation. Optional.
	Metrics *metrics.Registry
}

// BatcherStats is a point-in-time snapshot of a batcher's counters.
type BatcherStats struct {
	Table     string
	Submitted uint64
	Flushed   uint64
	Failed    uint64
	Flushes   uint64
	Buffered  int
}

// Batcher buffers mutations for one table and flushes them asynchronously.
//
// Submit never blocks on store I/O. Flush failures are reported through the
// failure listener and, as the first observed error, from Close. Mutations
// submitted in program order are flushed in that order; the single flusher
// goroutine is the only writer to the table.
type Batcher struct {
	table Table
	cfg   BatcherConfig
	log   logging.Logger

	mu       sync.Mutex
	buffer   []Mutation
	closed   bool
	firstErr error

	submitted atomic.Uint64
	flushed   atomic.Uint64
	failed    atomic.Uint64
	flushes   atomic.Uint64

	stopCh    chan struct{}
	flushCh   chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewBatcher creates a batcher over t and starts its background flusher.
func NewBatcher(t Table, cfg BatcherConfig) *Batcher {
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = DefaultMaxBuffered
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	b := &Batcher{
		table:   t,
		cfg:     cfg,
		log:     log.With(logging.Component("batcher"), logging.Table(t.Name())),
		buffer:  make([]Mutation, 0, cfg.MaxBuffered),
		stopCh:  make(chan struct{}),
		flushCh: make(chan struct{}, 1),
	}

	b.wg.Add(1)
	go b.backgroundFlusher()

	return b
}

// Name returns the underlying table's name.
func (b *Batcher) Name() string {
	return b.table.Name()
}

// Submit stamps each mutation with the configured durability level and
// enqueues it. It returns once the mutations are buffered; delivery is
// asynchronous and delivery failures are reported only through the failure
// listener and Close. The only error returned here is ErrBatcherClosed.
func (b *Batcher) Submit(muts ...Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	for i := range muts {
		muts[i].Durability = b.cfg.Durability
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatcherClosed
	}
	b.buffer = append(b.buffer, muts...)
	shouldFlush := len(b.buffer) >= b.cfg.MaxBuffered
	b.mu.Unlock()

	b.submitted.Add(uint64(len(muts)))
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.MutationsSubmitted.WithLabelValues(b.table.Name()).Add(float64(len(muts)))
		b.cfg.Metrics.MutationsBuffered.WithLabelValues(b.table.Name()).Add(float64(len(muts)))
	}

	// Trigger immediate flush if the buffer is full
	if shouldFlush {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}

	return nil
}

// Flush forces a synchronous flush of the current buffer and returns its
// error, if any. Mutations submitted concurrently with Flush may or may not
// be included.
func (b *Batcher) Flush() error {
	return b.flush()
}

// Stats returns a snapshot of the batcher's counters.
func (b *Batcher) Stats() BatcherStats {
	b.mu.Lock()
	buffered := len(b.buffer)
	b.mu.Unlock()
	return BatcherStats{
		Table:     b.table.Name(),
		Submitted: b.submitted.Load(),
		Flushed:   b.flushed.Load(),
		Failed:    b.failed.Load(),
		Flushes:   b.flushes.Load(),
		Buffered:  buffered,
	}
}

// backgroundFlusher periodically flushes buffered mutations
func (b *Batcher) backgroundFlusher() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			// Final flush on shutdown
			b.flush()
			return

		case <-ticker.C:
			b.flush()

		case <-b.flushCh:
			b.flush()
		}
	}
}

// flush takes ownership of the current buffer and applies it to the table.
func (b *Batcher) flush() error {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.buffer
	b.buffer = make([]Mutation, 0, b.cfg.MaxBuffered)
	b.mu.Unlock()

	b.flushes.Add(1)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.MutationsBuffered.WithLabelValues(b.table.Name()).Sub(float64(len(batch)))
	}

	start := time.Now()
	err := b.table.Apply(context.Background(), batch)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.FlushDuration.WithLabelValues(b.table.Name()).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		b.failed.Add(uint64(len(batch)))
		if b.cfg.Metrics != nil {
			b.cfg.Metrics.MutationsFailed.WithLabelValues(b.table.Name()).Add(float64(len(batch)))
			b.cfg.Metrics.FlushFailures.WithLabelValues(b.table.Name()).Inc()
		}
		ferr := &FlushError{Table: b.table.Name(), Mutations: len(batch), Cause: err}

		b.mu.Lock()
		if b.firstErr == nil {
			b.firstErr = ferr
		}
		b.mu.Unlock()

		b.log.Error("batch flush failed",
			logging.Count(len(batch)),
			logging.Error(err))
		if b.cfg.OnFailure != nil {
			b.cfg.OnFailure(batch, err)
		}
		return ferr
	}

	b.flushed.Add(uint64(len(batch)))
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.MutationsFlushed.WithLabelValues(b.table.Name()).Add(float64(len(batch)))
	}
	b.log.Debug("batch flushed",
		logging.Count(len(batch)),
		logging.Latency(time.Since(start)))
	if b.cfg.OnFlush != nil {
		b.cfg.OnFlush(b.table.Name(), batch)
	}
	return nil
}

// Close stops the background flusher, drains the buffer with a final flush,
// and returns the first flush error observed over the batcher's lifetime.
// It does not close the underlying table.
func (b *Batcher) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		// Signal background flusher to stop; it performs the final flush
		close(b.stopCh)
		b.wg.Wait()

		b.mu.Lock()
		b.closeErr = b.firstErr
		b.mu.Unlock()
	})
	return b.closeErr
}
