// Package queue dispatches transcription jobs in priority order with bounded
// concurrency, global rate limiting and classified retries.
package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/resilience"
	"github.com/GriffinCanCode/voice-translator/internal/syncx"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Queue defaults
const (
	DefaultMaxQueueSize   = 50
	DefaultMaxConcurrent  = 2
	DefaultRateLimitDelay = 200 * time.Millisecond
	DefaultHistorySize    = 100
)

// Config for the queue
type Config struct {
	MaxQueueSize   int
	MaxConcurrent  int
	RateLimitDelay time.Duration // minimum spacing between dispatches; zero disables
	HistorySize    int           // completed/failed entries kept for lookup
	Policy         resilience.Policy
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.RateLimitDelay < 0 {
		c.RateLimitDelay = 0
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// ProcessFunc performs one attempt for an item.
type ProcessFunc[R any] func(ctx context.Context, item Item) (R, error)

// Queue is a priority queue with a dispatch loop. Every item lives in exactly
// one of the queued, processing, completed or failed collections. An item
// waiting out a retry backoff stays in processing without holding a slot.
type Queue[R any] struct {
	cfg      Config
	process  ProcessFunc[R]
	onResult func(Result[R])
	sink     events.Sink
	limiter  *rate.Limiter

	mu             sync.Mutex
	sched          *syncx.Scheduler
	pending        []*Item
	processing     map[string]*Item
	completed      map[string]Result[R]
	completedOrder *syncx.Ring[string]
	failed         map[string]*Item
	failedOrder    *syncx.Ring[string]
	inFlight       int
	seq            uint64
	gen            uint64
	totalTime      time.Duration
	timed          int

	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a stopped queue. onResult, when set, is called once per item
// that reaches completed or failed, after its slot is released.
func New[R any](cfg Config, process ProcessFunc[R], onResult func(Result[R]), sink events.Sink) *Queue[R] {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = events.Discard
	}
	limit := rate.Inf
	if cfg.RateLimitDelay > 0 {
		limit = rate.Every(cfg.RateLimitDelay)
	}
	return &Queue[R]{
		cfg:            cfg,
		process:        process,
		onResult:       onResult,
		sink:           sink,
		limiter:        rate.NewLimiter(limit, 1),
		sched:          syncx.NewScheduler(),
		processing:     make(map[string]*Item),
		completed:      make(map[string]Result[R]),
		completedOrder: syncx.NewRing[string](cfg.HistorySize),
		failed:         make(map[string]*Item),
		failedOrder:    syncx.NewRing[string](cfg.HistorySize),
		wake:           make(chan struct{}, 1),
	}
}

// Enqueue admits a segment and its encoded payload. A negative maxRetries
// takes the policy default. Fails with a QueueFullError at capacity.
func (q *Queue[R]) Enqueue(seg pcm.Segment, payload []byte, priority, maxRetries int) (string, error) {
	if maxRetries < 0 {
		maxRetries = q.cfg.Policy.MaxRetries
	}

	q.mu.Lock()
	if len(q.pending) >= q.cfg.MaxQueueSize {
		q.mu.Unlock()
		return "", apperrors.QueueFullError(q.cfg.MaxQueueSize)
	}
	q.seq++
	item := &Item{
		ID:         uuid.NewString(),
		Segment:    seg,
		Payload:    payload,
		Priority:   priority,
		EnqueuedAt: time.Now(),
		MaxRetries: maxRetries,
		seq:        q.seq,
	}
	q.insertLocked(item)
	q.mu.Unlock()

	e := events.New(events.ItemAdded)
	e.ItemID = item.ID
	q.sink.Emit(e)
	q.signal()
	return item.ID, nil
}

func (q *Queue[R]) insertLocked(item *Item) {
	item.Status = StatusQueued
	i := sort.Search(len(q.pending), func(i int) bool { return item.before(q.pending[i]) })
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = item
}

// Start launches the dispatch loop. Calling Start on a running queue is a no-op.
func (q *Queue[R]) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	q.running = true
	done := q.done
	q.mu.Unlock()

	go q.dispatch(ctx, done)
	q.signal()
}

// Stop halts dispatching, cancels scheduled retries and clears every
// collection. Completions of abandoned in-flight work are ignored.
func (q *Queue[R]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		q.Clear()
		return
	}
	q.running = false
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	cancel()
	<-done
	q.Clear()
}

// Clear drops all items, cancels pending retries and invalidates in-flight
// work.
func (q *Queue[R]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	q.sched.Stop()
	q.sched = syncx.NewScheduler()
	q.pending = nil
	q.processing = make(map[string]*Item)
	q.completed = make(map[string]Result[R])
	q.completedOrder.Reset()
	q.failed = make(map[string]*Item)
	q.failedOrder.Reset()
	q.inFlight = 0
	q.totalTime, q.timed = 0, 0
}

// Remove deletes a queued item. Items being processed cannot be removed.
func (q *Queue[R]) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.pending {
		if it.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a snapshot of an item and the collection it lives in.
func (q *Queue[R]) Get(id string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.pending {
		if it.ID == id {
			return *it, true
		}
	}
	if it, ok := q.processing[id]; ok {
		return *it, true
	}
	if r, ok := q.completed[id]; ok {
		return r.Item, true
	}
	if it, ok := q.failed[id]; ok {
		return *it, true
	}
	return Item{}, false
}

// Result returns the stored outcome of a completed item.
func (q *Queue[R]) Result(id string) (Result[R], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.completed[id]
	return r, ok
}

// Stats returns aggregate counters.
func (q *Queue[R]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{
		Queued:      len(q.pending),
		Processing:  len(q.processing),
		InFlight:    q.inFlight,
		Completed:   len(q.completed),
		Failed:      len(q.failed),
		QueueLength: len(q.pending),
	}
	if q.timed > 0 {
		s.AverageProcessingTime = q.totalTime / time.Duration(q.timed)
	}
	return s
}

func (q *Queue[R]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[R]) dispatch(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}

		for q.ready() {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
			item, gen, ok := q.pop()
			if !ok {
				break
			}
			go q.run(ctx, item, gen)
		}
	}
}

func (q *Queue[R]) ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0 && q.inFlight < q.cfg.MaxConcurrent
}

func (q *Queue[R]) pop() (Item, uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 || q.inFlight >= q.cfg.MaxConcurrent {
		return Item{}, 0, false
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	item.Status = StatusProcessing
	q.processing[item.ID] = item
	q.inFlight++
	return *item, q.gen, true
}

func (q *Queue[R]) run(ctx context.Context, snapshot Item, gen uint64) {
	log := trace.Logger(ctx)
	start := time.Now()
	value, err := q.process(ctx, snapshot)
	elapsed := time.Since(start)

	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		log.Debug("discarding result from cleared queue", "item", snapshot.ID)
		return
	}
	item, ok := q.processing[snapshot.ID]
	if !ok {
		q.mu.Unlock()
		return
	}
	q.inFlight--
	q.totalTime += elapsed
	q.timed++

	if err == nil {
		delete(q.processing, item.ID)
		item.Status = StatusCompleted
		item.release()
		res := Result[R]{Item: *item, Value: value, ProcessingTime: elapsed}
		q.completed[item.ID] = res
		if old, evicted := q.completedOrder.Push(item.ID); evicted {
			delete(q.completed, old)
		}
		q.mu.Unlock()

		e := events.New(events.ItemCompleted)
		e.ItemID = item.ID
		q.sink.Emit(e)
		q.finish(res)
		return
	}

	info := apperrors.Classify(err)
	item.LastError = info
	policy := q.cfg.Policy
	policy.MaxRetries = item.MaxRetries
	if policy.ShouldRetry(info, item.RetryCount) {
		delay := policy.Delay(item.RetryCount)
		item.RetryCount++
		attempt := item.RetryCount
		id := item.ID
		q.sched.After(delay, func() { q.requeue(id, gen) })
		q.mu.Unlock()

		log.Warn("transcription failed, retrying", "item", id, "attempt", attempt, "delay", delay, "kind", info.Kind)
		e := events.New(events.ItemRetrying)
		e.ItemID = id
		e.Attempt = attempt
		e.Delay = delay
		e.Err = info.Error()
		q.sink.Emit(e)
		q.signal()
		return
	}

	delete(q.processing, item.ID)
	item.Status = StatusFailed
	item.release()
	q.failed[item.ID] = item
	if old, evicted := q.failedOrder.Push(item.ID); evicted {
		delete(q.failed, old)
	}
	res := Result[R]{Item: *item, Err: info, ProcessingTime: elapsed}
	q.mu.Unlock()

	log.Error("transcription failed", "item", item.ID, "retries", item.RetryCount, "kind", info.Kind, "error", err)
	e := events.New(events.ItemFailed)
	e.ItemID = item.ID
	e.Err = info.Error()
	q.sink.Emit(e)
	q.finish(res)
}

func (q *Queue[R]) finish(res Result[R]) {
	q.signal()
	if q.onResult != nil {
		q.onResult(res)
	}
}

func (q *Queue[R]) requeue(id string, gen uint64) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	item, ok := q.processing[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	delete(q.processing, id)
	q.insertLocked(item)
	q.mu.Unlock()
	q.signal()
}
