package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink consumes audit records (file, webhook, etc.). Implementations must be
// safe for concurrent use.
type Sink interface {
	Name() string
	Deliver(context.Context, *Record) error
	Close(context.Context) error
}

// Metrics holds delivery counters.
type Metrics struct {
	enqueued uint64
	dropped  uint64

	sinkSuccess map[string]uint64
	sinkFailure map[string]uint64
}

// Snapshot copies the counters for observation/testing.
func (m *Metrics) Snapshot() Metrics {
	if m == nil {
		return Metrics{}
	}
	out := Metrics{
		enqueued:    m.enqueued,
		dropped:     m.dropped,
		sinkSuccess: make(map[string]uint64, len(m.sinkSuccess)),
		sinkFailure: make(map[string]uint64, len(m.sinkFailure)),
	}
	for k, v := range m.sinkSuccess {
		out.sinkSuccess[k] = v
	}
	for k, v := range m.sinkFailure {
		out.sinkFailure[k] = v
	}
	return out
}

func (m Metrics) Enqueued() uint64 { return m.enqueued }

func (m Metrics) Dropped() uint64 { return m.dropped }

func (m Metrics) SinkSuccess(name string) uint64 { return m.sinkSuccess[name] }

func (m Metrics) SinkFailure(name string) uint64 { return m.sinkFailure[name] }

// Emitter buffers records and delivers them to sinks on background workers.
// Emit never blocks the request path: when the queue is full the record is
// dropped and counted, and the caller surfaces a warning instead of failing
// the call.
type Emitter struct {
	queue           chan *Record
	sinks           []Sink
	metrics         *Metrics
	shutdownTimeout time.Duration
	log             zerolog.Logger

	mu        sync.RWMutex
	metricsMu sync.Mutex
	closed    bool
	wg        sync.WaitGroup
}

// EmitterConfig controls queue and worker sizing.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

// NewEmitter starts background workers delivering to the provided sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink, log zerolog.Logger) *Emitter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 2 * time.Second
	}

	m := &Metrics{
		sinkSuccess: make(map[string]uint64, len(sinks)),
		sinkFailure: make(map[string]uint64, len(sinks)),
	}
	for _, s := range sinks {
		m.sinkSuccess[s.Name()] = 0
		m.sinkFailure[s.Name()] = 0
	}

	em := &Emitter{
		queue:           make(chan *Record, queueSize),
		sinks:           sinks,
		metrics:         m,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
	for i := 0; i < workers; i++ {
		em.wg.Add(1)
		go em.worker()
	}
	return em
}

// Emit enqueues the record without blocking. It reports whether the record
// was accepted; false means the caller should attach an audit warning to the
// response metadata.
func (e *Emitter) Emit(_ context.Context, rec *Record) bool {
	if e == nil || rec == nil {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.countDrop()
		return false
	}

	select {
	case e.queue <- rec:
		e.metricsMu.Lock()
		e.metrics.enqueued++
		e.metricsMu.Unlock()
		return true
	default:
		e.countDrop()
		return false
	}
}

// Close stops accepting records and waits briefly for the queue to drain.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx := ctx
	if waitCtx == nil {
		waitCtx = context.Background()
	}
	if e.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, e.shutdownTimeout)
		defer cancel()
	}

	select {
	case <-done:
	case <-waitCtx.Done():
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			e.log.Warn().Str("sink", s.Name()).Err(err).Msg("audit sink close error")
		}
	}
}

// MetricsSnapshot safely copies current counters.
func (e *Emitter) MetricsSnapshot() Metrics {
	if e == nil || e.metrics == nil {
		return Metrics{}
	}
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return e.metrics.Snapshot()
}

func (e *Emitter) countDrop() {
	e.metricsMu.Lock()
	e.metrics.dropped++
	e.metricsMu.Unlock()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for rec := range e.queue {
		e.deliver(rec)
	}
}

func (e *Emitter) deliver(rec *Record) {
	for _, s := range e.sinks {
		if err := s.Deliver(context.Background(), rec); err != nil {
			// Records are content-free, so the error is loggable as-is.
			e.log.Warn().Str("sink", s.Name()).Str("request_id", rec.RequestID).Err(err).Msg("audit sink delivery failed")
			e.metricsMu.Lock()
			e.metrics.sinkFailure[s.Name()]++
			e.metricsMu.Unlock()
			continue
		}
		e.metricsMu.Lock()
		e.metrics.sinkSuccess[s.Name()]++
		e.metricsMu.Unlock()
	}
}
