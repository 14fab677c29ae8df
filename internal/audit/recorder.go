// Package audit keeps a local trail of relay activity in SQLite.
package audit

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secure-exam/relay/internal/model"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event *model.AuditEvent) error
}

const writeTimeout = 5 * time.Second

// Recorder queues audit events and writes them to a Store from a single
// goroutine, so that recording never blocks the relay. Events recorded
// while the queue is full are dropped and counted.
type Recorder struct {
	store Store
	queue chan model.AuditEvent
	now   func() time.Time

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder starts a recorder with room for bufferSize pending events.
func NewRecorder(store Store, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	r := &Recorder{
		store: store,
		queue: make(chan model.AuditEvent, bufferSize),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues ev, stamping it with the current time if it has none.
func (r *Recorder) Record(ev model.AuditEvent) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- ev:
	default:
		if r.dropped.Add(1)%100 == 1 {
			log.Printf("audit: queue full, dropping %s event for exam %s", ev.Kind, ev.ExamID)
		}
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.store.Append(ctx, &ev)
		cancel()
		if err != nil {
			log.Printf("audit: failed to write %s event for exam %s: %v", ev.Kind, ev.ExamID, err)
			continue
		}
		r.written.Add(1)
	}
}

// Close stops accepting events and waits for queued ones to be written or
// for ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were discarded.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns how many events reached the store.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}
