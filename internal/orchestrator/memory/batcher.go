package memory

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/history"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Store persists batches of records.
type Store interface {
	SaveBatch(ctx context.Context, records []history.Record) error
}

// Batcher accumulates history records and flushes them in batches.
type Batcher struct {
	store      Store
	maxSize    int
	flushDelay time.Duration
	mu         sync.Mutex
	items      []history.Record
	timer      *time.Timer
	stopped    bool
	wg         sync.WaitGroup
}

// NewBatcher creates a history batcher.
func NewBatcher(store Store, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatcherMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatcherFlushDelay
	}
	return &Batcher{
		store:      store,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]history.Record, 0, maxSize),
	}
}

// Emit records every translationReady event; other events are ignored.
func (b *Batcher) Emit(e events.Event) {
	if e.Type != events.TranslationReady {
		return
	}
	b.Add(history.Record{
		SessionID:      e.SessionID,
		OriginalText:   e.Text,
		TranslatedText: e.TranslatedText,
		SourceLang:     e.SourceLang,
		TargetLang:     e.TargetLang,
		AudioBytes:     len(e.Audio),
		SynthesisError: e.Err,
		CreatedAt:      e.Time,
	})
}

// Add queues a record for batched storage.
func (b *Batcher) Add(r history.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.items = append(b.items, r)

	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return
	}

	// Start or reset timer for delayed flush
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

// Pending returns the number of records not yet handed to the store.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.items
	b.items = make([]history.Record, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "history_batch_flush")
		defer span.End()
		span.SetAttr("count", len(items))

		log := trace.Logger(ctx)
		if err := b.store.SaveBatch(ctx, items); err != nil {
			span.SetAttr("error", err.Error())
			log.Warn("batch history store failed", "error", err, "count", len(items))
			return
		}
		log.Debug("batch history stored", "count", len(items))
	}()
}

// Flush forces immediate flush of pending items.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes remaining items, waits for in-flight writes and ignores
// later adds.
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.flushLocked()
	b.stopped = true
	b.mu.Unlock()
	b.wg.Wait()
}
