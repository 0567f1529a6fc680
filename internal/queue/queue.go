package queue

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/quizvideo/api/internal/render"
)

// DeliveryResult is the outcome of one delivery attempt.
type DeliveryResult struct {
	Sent bool
	Err  string
}

// Notifier delivers a finished artifact to its destination chat. It must
// never fail the job: transport and API errors come back as data.
type Notifier interface {
	Deliver(ctx context.Context, artifact []byte, chatID, jobID string) DeliveryResult
}

// Broadcaster receives job lifecycle events for fan-out to subscribers.
type Broadcaster interface {
	BroadcastProgress(jobID string, progress float64)
	BroadcastComplete(jobID string, telegramSent *bool, telegramError string)
	BroadcastError(jobID string, kind, message string)
}

// Options configure a Queue.
type Options struct {
	ServeURL      string
	CompositionID string
	Codec         string
}

// Queue owns the job store and executes renders strictly one at a time in
// arrival order. Creating, querying and cancelling jobs are safe to call
// concurrently with the single active render.
type Queue struct {
	store    *Store
	engine   render.Engine
	notifier Notifier
	hub      Broadcaster // optional
	opts     Options

	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	closed  bool
}

// New creates a Queue. notifier and hub may be nil.
func New(engine render.Engine, notifier Notifier, hub Broadcaster, opts Options) *Queue {
	if opts.CompositionID == "" {
		opts.CompositionID = "QuizVideo"
	}
	if opts.Codec == "" {
		opts.Codec = "h264"
	}
	q := &Queue{
		store:    NewStore(),
		engine:   engine,
		notifier: notifier,
		hub:      hub,
		opts:     opts,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// CreateJob registers a queued job and schedules it. It returns as soon as
// the job is enqueued and never waits for the render. The pending list is
// unbounded; only one job is ever in progress.
func (q *Queue) CreateJob(input Input) string {
	jobID := uuid.NewString()

	q.store.Set(jobID, Queued{
		Input: input,
		// The handle goes inert once the worker takes the job over: a
		// stale invocation must not touch the live record.
		Cancel: func() {
			q.store.Update(jobID, func(prev State) State {
				if _, ok := prev.(Queued); ok {
					return nil
				}
				return prev
			})
		},
	})

	q.mu.Lock()
	q.pending = append(q.pending, jobID)
	q.cond.Signal()
	q.mu.Unlock()

	log.Printf("Job %s queued", jobID)
	return jobID
}

// Job returns the current record for id.
func (q *Queue) Job(id string) (State, bool) {
	return q.store.Get(id)
}

// Jobs returns an insertion-ordered snapshot of all records.
func (q *Queue) Jobs() []Entry {
	return q.store.List()
}

// Cancel resolves the job's state under the store lock so the worker's
// takeover cannot slip between the lookup and the action. A queued job is
// removed entirely; an in-progress job has its render aborted and ends up
// failed. Terminal jobs return ErrNotCancellable.
func (q *Queue) Cancel(id string) error {
	var abort func()
	var terminal bool
	if _, ok := q.store.Update(id, func(prev State) State {
		switch s := prev.(type) {
		case Queued:
			return nil
		case InProgress:
			abort = s.Cancel
			return prev
		default:
			terminal = true
			return prev
		}
	}); !ok {
		return ErrJobNotFound
	}
	if terminal {
		return ErrNotCancellable
	}
	if abort != nil {
		abort()
	}
	log.Printf("Job %s cancelled", id)
	return nil
}

// Run consumes the pending FIFO until ctx is cancelled. It is the single
// worker: one job's failure or cancellation never stops the loop or skips
// jobs queued after it.
func (q *Queue) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		q.mu.Lock()
		q.closed = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		jobID := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.process(ctx, jobID); err != nil {
			if errors.Is(err, ErrJobNotFound) {
				// Cancelled while queued; the slot is a no-op.
				log.Printf("Job %s was cancelled before its turn", jobID)
				continue
			}
			log.Printf("Job %s processing error: %v", jobID, err)
		}
	}
}
