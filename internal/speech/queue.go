package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("speech queue closed")
	// ErrDiscarded is reported to OnDelivered for items dropped by a Discard shutdown.
	ErrDiscarded = errors.New("announcement discarded at shutdown")
)

// DefaultPollInterval bounds how long the worker waits before rechecking the queue.
const DefaultPollInterval = time.Second

// ShutdownPolicy decides what Close does with undelivered announcements.
type ShutdownPolicy int

const (
	// Drain delivers the backlog before the worker exits.
	Drain ShutdownPolicy = iota
	// Discard drops the backlog; an in-flight delivery still completes.
	Discard
)

// String returns the config name of the policy.
func (p ShutdownPolicy) String() string {
	if p == Discard {
		return "discard"
	}
	return "drain"
}

// ParseShutdownPolicy accepts "drain" or "discard".
func ParseShutdownPolicy(s string) (ShutdownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drain":
		return Drain, nil
	case "discard":
		return Discard, nil
	default:
		return Drain, fmt.Errorf("unknown shutdown policy %q", s)
	}
}

// Options configures a Queue.
type Options struct {
	// PollInterval bounds each idle wait. Zero selects DefaultPollInterval.
	PollInterval time.Duration
	// Policy is applied by Close.
	Policy ShutdownPolicy
	// OnDelivered is called from the worker after each announcement leaves the
	// queue. err is nil on success.
	OnDelivered func(a announce.Announcement, err error)
	Logger      *slog.Logger
}

// Queue is an unbounded FIFO of announcements drained by one worker goroutine.
type Queue struct {
	sink   Sink
	poll   time.Duration
	policy ShutdownPolicy
	hook   func(announce.Announcement, error)
	log    *slog.Logger

	mu      sync.Mutex
	items   []announce.Announcement
	closed  bool
	started bool

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	speaking  atomic.Bool
	lastPoll  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a Queue delivering to sink. Call Start to run the worker.
func NewQueue(sink Sink, opts Options) *Queue {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		sink:   sink,
		poll:   opts.PollInterval,
		policy: opts.Policy,
		hook:   opts.OnDelivered,
		log:    logger.With("component", "speech"),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. It is a no-op after the first call or after Close.
// The worker keeps ctx's values but not its cancellation: only Close stops it.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.mu.Unlock()

	go q.run(ctx)
}

// Enqueue appends a to the queue. It never blocks.
func (q *Queue) Enqueue(a announce.Announcement) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, a)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Speaking reports whether the worker is inside a delivery.
func (q *Queue) Speaking() bool {
	return q.speaking.Load()
}

// Pending returns the number of announcements waiting for delivery.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// LastPoll returns when the worker last woke up, or the zero time if it never ran.
func (q *Queue) LastPoll() time.Time {
	ns := q.lastPoll.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Stats returns delivery counters.
func (q *Queue) Stats() (delivered, failed int64) {
	return q.delivered.Load(), q.failed.Load()
}

// Close stops accepting announcements and waits for the worker to exit
// according to the shutdown policy. If ctx is done first, the in-flight
// delivery is cancelled, the rest of the backlog is reported as discarded and
// ctx.Err() is returned; use Wait to block until the worker has exited.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return q.wait(ctx)
	}
	q.closed = true
	var dropped []announce.Announcement
	if q.policy == Discard || !q.started {
		dropped = q.items
		q.items = nil
	}
	started := q.started
	q.mu.Unlock()

	close(q.stop)

	if len(dropped) > 0 {
		q.log.Info("discarding announcements", "count", len(dropped), "policy", q.policy.String())
		for _, a := range dropped {
			q.report(a, ErrDiscarded)
		}
	}

	if !started {
		close(q.done)
		return nil
	}
	return q.wait(ctx)
}

func (q *Queue) wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		cancel := q.cancel
		q.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
}

// Wait blocks until the worker has exited. It must follow a call to Close.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	defer q.cancel()

	timer := time.NewTimer(q.poll)
	defer timer.Stop()

	for {
		q.lastPoll.Store(time.Now().UnixNano())

		if ctx.Err() != nil {
			q.abandon()
			return
		}

		if a, ok := q.next(); ok {
			q.deliver(ctx, a)
			continue
		}

		select {
		case <-q.stop:
			// Closed and empty.
			return
		default:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.poll)

		select {
		case <-ctx.Done():
		case <-q.notify:
		case <-q.stop:
		case <-timer.C:
		}
	}
}

// abandon reports every queued announcement as discarded.
func (q *Queue) abandon() {
	q.mu.Lock()
	dropped := q.items
	q.items = nil
	q.mu.Unlock()

	if len(dropped) > 0 {
		q.log.Warn("shutdown timed out, discarding announcements", "count", len(dropped))
	}
	for _, a := range dropped {
		q.report(a, ErrDiscarded)
	}
}

func (q *Queue) next() (announce.Announcement, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return announce.Announcement{}, false
	}
	a := q.items[0]
	q.items[0] = announce.Announcement{}
	q.items = q.items[1:]
	return a, true
}

func (q *Queue) deliver(ctx context.Context, a announce.Announcement) {
	q.speaking.Store(true)
	err := q.safeDeliver(ctx, a)
	q.speaking.Store(false)

	if err != nil {
		q.failed.Add(1)
		q.log.Warn("speech delivery failed", "id", a.ID, "label", a.Label, "error", err)
	} else {
		q.delivered.Add(1)
		q.log.Debug("announcement delivered", "id", a.ID, "label", a.Label, "language", a.Language.String())
	}
	q.report(a, err)
}

func (q *Queue) safeDeliver(ctx context.Context, a announce.Announcement) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("speech sink panic: %v", r)
		}
	}()
	return q.sink.Deliver(ctx, a.Text, a.Language)
}

func (q *Queue) report(a announce.Announcement, err error) {
	if q.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("delivery hook panic", "id", a.ID, "panic", r)
		}
	}()
	q.hook(a, err)
}
