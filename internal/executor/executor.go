// Package executor runs blocking store reads on a bounded worker pool
// with per-class timeouts and cooperative cancellation.
//
// Submitted functions must be side-effect-free reads: when a caller times
// out or cancels, it stops waiting but the worker keeps running the
// function until it next observes its context. Mutating work must never
// go through this pool.
package executor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/citetree/citetree/pkg/observability"
)

// descriptionLimit bounds the description length reported by Active.
const descriptionLimit = 80

// Query lifecycle statuses reported by Active.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

var (
	// ErrTimeout is returned by Submit when the per-class deadline passes
	// before the work completes. The caller may retry.
	ErrTimeout = errors.New("query timed out")

	// ErrCancelled is returned by Submit when the query was cancelled,
	// either through Cancel/CancelAll or by the caller's context.
	ErrCancelled = errors.New("query cancelled")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("executor closed")

	// ErrDuplicateID is returned by Submit when a query with the same
	// client-supplied id is still outstanding. Accepting it would make
	// the two queries indistinguishable to Cancel and Active.
	ErrDuplicateID = errors.New("duplicate query id")
)

// Func is a unit of read work. It must honor ctx cancellation at its
// blocking points.
type Func func(ctx context.Context) (any, error)

// Request describes a submission. An empty ID gets a generated uuid;
// clients that want to cancel a specific query supply their own.
type Request struct {
	ID          string
	Class       string
	Description string
}

// ActiveQuery is one outstanding submission, as reported by Active.
type ActiveQuery struct {
	ID          string        `json:"id"`
	Class       string        `json:"class"`
	Description string        `json:"description"`
	Elapsed     time.Duration `json:"elapsed"`
	Status      string        `json:"status"`
}

// Options configures New.
type Options struct {
	// Workers is the pool size. Must be at least 1.
	Workers int

	// QueueSize is the buffered submission queue length.
	QueueSize int

	// Timeouts maps endpoint class to deadline. Classes without an entry
	// use DefaultTimeout.
	Timeouts map[string]time.Duration

	// DefaultTimeout applies to unknown classes. Zero means one second.
	DefaultTimeout time.Duration

	// Counters receives request statistics. The caller owns it and reads
	// snapshots from it; nil allocates a private set.
	Counters *Counters
}

type outcome struct {
	value any
	err   error
}

type query struct {
	id          string
	class       string
	description string
	started     time.Time
	cancel      context.CancelFunc
	status      string
}

type task struct {
	q      *query
	ctx    context.Context
	fn     Func
	result chan outcome
}

// Executor is the bounded worker pool. All methods are safe for
// concurrent use.
type Executor struct {
	queue          chan *task
	done           chan struct{}
	counters       *Counters
	timeouts       map[string]time.Duration
	defaultTimeout time.Duration

	mu     sync.Mutex
	active map[string]*query
	closed bool

	wg sync.WaitGroup
}

// New starts the worker pool.
func New(opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = time.Second
	}
	if opts.Counters == nil {
		opts.Counters = &Counters{}
	}

	e := &Executor{
		queue:          make(chan *task, opts.QueueSize),
		done:           make(chan struct{}),
		counters:       opts.Counters,
		timeouts:       opts.Timeouts,
		defaultTimeout: opts.DefaultTimeout,
		active:         make(map[string]*query),
	}
	for i := 0; i < opts.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Close stops accepting submissions and waits for the workers to drain
// the queue. The queue channel is never closed; a Submit blocked on a
// full queue during shutdown wakes on the done channel and returns
// ErrClosed instead of panicking on the send.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case t := <-e.queue:
			e.run(t)
		case <-e.done:
			// Drain what was enqueued before shutdown; their callers
			// are still waiting on the result channel.
			for {
				select {
				case t := <-e.queue:
					e.run(t)
				default:
					return
				}
			}
		}
	}
}

func (e *Executor) run(t *task) {
	if t.ctx.Err() != nil {
		// Abandoned while queued; nothing to run.
		e.finish(t.q)
		return
	}
	e.setStatus(t.q, StatusRunning)
	value, err := t.fn(t.ctx)
	t.result <- outcome{value: value, err: err}
	e.finish(t.q)
}

// Submit runs fn on the pool and waits for its result, the per-class
// timeout, or cancellation, whichever comes first. On timeout the worker
// is abandoned: Submit returns ErrTimeout immediately and the worker
// finishes in the background with a cancelled context.
func (e *Executor) Submit(ctx context.Context, req Request, fn Func) (any, error) {
	e.counters.Submitted.Add(1)
	observability.Query().OnSubmit(ctx, req.Class, req.Description)

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	workCtx, cancel := context.WithCancel(ctx)
	q := &query{
		id:          req.ID,
		class:       req.Class,
		description: req.Description,
		started:     time.Now(),
		cancel:      cancel,
		status:      StatusQueued,
	}
	if err := e.register(q); err != nil {
		cancel()
		return nil, err
	}

	t := &task{q: q, ctx: workCtx, fn: fn, result: make(chan outcome, 1)}
	timer := time.NewTimer(e.timeoutFor(req.Class))
	defer timer.Stop()

	select {
	case e.queue <- t:
	case <-e.done:
		e.remove(q)
		cancel()
		return nil, ErrClosed
	case <-timer.C:
		e.remove(q)
		cancel()
		return nil, e.complete(ctx, q, StatusTimeout)
	case <-workCtx.Done():
		e.remove(q)
		return nil, e.complete(ctx, q, StatusCancelled)
	}

	select {
	case out := <-t.result:
		elapsed := time.Since(q.started)
		if out.err != nil {
			if errors.Is(out.err, context.Canceled) {
				e.counters.Cancelled.Add(1)
				observability.Query().OnComplete(ctx, q.class, StatusCancelled, elapsed)
				return nil, ErrCancelled
			}
			e.counters.Failed.Add(1)
			observability.Query().OnComplete(ctx, q.class, "error", elapsed)
			return nil, out.err
		}
		e.counters.Succeeded.Add(1)
		observability.Query().OnComplete(ctx, q.class, "success", elapsed)
		return out.value, nil
	case <-timer.C:
		e.setStatus(q, StatusTimeout)
		cancel()
		return nil, e.complete(ctx, q, StatusTimeout)
	case <-workCtx.Done():
		e.setStatus(q, StatusCancelled)
		return nil, e.complete(ctx, q, StatusCancelled)
	}
}

// complete counts and reports a timeout or cancellation outcome.
func (e *Executor) complete(ctx context.Context, q *query, status string) error {
	elapsed := time.Since(q.started)
	observability.Query().OnComplete(ctx, q.class, status, elapsed)
	if status == StatusTimeout {
		e.counters.TimedOut.Add(1)
		return ErrTimeout
	}
	e.counters.Cancelled.Add(1)
	return ErrCancelled
}

// Cancel cancels the query with the given id. Returns false when the id
// is unknown or the query already completed.
func (e *Executor) Cancel(id string) bool {
	e.mu.Lock()
	q, ok := e.active[id]
	if ok {
		q.status = StatusCancelled
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	q.cancel()
	return true
}

// CancelAll cancels every outstanding query and returns how many were
// still outstanding. Already-completed queries are not counted.
func (e *Executor) CancelAll() int {
	e.mu.Lock()
	outstanding := make([]*query, 0, len(e.active))
	for _, q := range e.active {
		q.status = StatusCancelled
		outstanding = append(outstanding, q)
	}
	e.mu.Unlock()

	for _, q := range outstanding {
		q.cancel()
	}
	return len(outstanding)
}

// Active lists outstanding queries, oldest first. Descriptions are
// truncated to 80 characters.
func (e *Executor) Active() []ActiveQuery {
	now := time.Now()

	e.mu.Lock()
	out := make([]ActiveQuery, 0, len(e.active))
	for _, q := range e.active {
		description := truncate(q.description, descriptionLimit)
		out = append(out, ActiveQuery{
			ID:          q.id,
			Class:       q.class,
			Description: description,
			Elapsed:     now.Sub(q.started),
			Status:      q.status,
		})
	}
	e.mu.Unlock()

	slices.SortFunc(out, func(a, b ActiveQuery) int {
		if a.Elapsed != b.Elapsed {
			if a.Elapsed > b.Elapsed {
				return -1
			}
			return 1
		}
		return 0
	})
	return out
}

func (e *Executor) timeoutFor(class string) time.Duration {
	if timeout, ok := e.timeouts[class]; ok {
		return timeout
	}
	return e.defaultTimeout
}

func (e *Executor) register(q *query) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if _, exists := e.active[q.id]; exists {
		return ErrDuplicateID
	}
	e.active[q.id] = q
	return nil
}

func (e *Executor) remove(q *query) {
	e.mu.Lock()
	delete(e.active, q.id)
	e.mu.Unlock()
}

func (e *Executor) setStatus(q *query, status string) {
	e.mu.Lock()
	// A cancelled query keeps its terminal status for Active reporting.
	if q.status != StatusCancelled {
		q.status = status
	}
	e.mu.Unlock()
}

// finish releases a query slot once its worker is done with it, whether
// the caller is still waiting or has moved on.
func (e *Executor) finish(q *query) {
	e.remove(q)
	q.cancel()
}

// truncate shortens s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
