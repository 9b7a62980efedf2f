// Package scheduler runs goal selection and planning on a fixed pool of
// worker goroutines, keeping search latency off the simulation loop.
//
// One coordinator goroutine calls Tick (directly or through Run). Tick drains
// finished results, hands them to the ResultSink, and assigns queued requests
// to idle workers. It never blocks on a worker. Each worker owns its planner
// and selector and only ever reads the immutable snapshot and definition
// tables it is handed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/exprcache"
	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/goals"
)

var (
	// ErrUnknownRequester is returned by Submit for unregistered requesters.
	ErrUnknownRequester = errors.New("scheduler: unknown requester")
	// ErrDuplicateRequest is returned by Submit while the requester already
	// has a request queued or in flight.
	ErrDuplicateRequest = errors.New("scheduler: request already pending")
	// ErrThrottled is returned by Submit when the requester exceeds its
	// replan rate.
	ErrThrottled = errors.New("scheduler: replan rate exceeded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("scheduler: pool closed")
	// ErrInvalidRequest is returned for requests without a snapshot.
	ErrInvalidRequest = errors.New("scheduler: invalid request")
	// ErrStarted is returned by a second call to Start.
	ErrStarted = errors.New("scheduler: pool already started")
)

// DefaultWorkers is the pool size used when Options.Workers is zero.
const DefaultWorkers = 2

// Definitions is the read-only definition provider. Implementations must be
// safe for concurrent reads and return definitions in a stable order.
type Definitions interface {
	AllGoals() []*goals.Definition
	AllActions() []*catalog.Template
	Goal(id string) (*goals.Definition, bool)
	Action(id string) (*catalog.Template, bool)
	// Needs lists the known need names, or nil when needs are not validated.
	Needs() []string
}

// ResultSink receives outcomes on the goroutine calling Tick.
//
// Every request produces exactly one OnGoalSelected call, with an empty goal
// id when nothing qualified. When a goal was selected it is followed by
// exactly one OnPlanFound or OnPlanFailed.
type ResultSink interface {
	OnGoalSelected(requester, goalID string)
	OnPlanFound(requester, goalID string, actions []string)
	OnPlanFailed(requester, goalID, reason string)
}

// Request asks for a goal and a plan for one agent.
type Request struct {
	Requester string
	Snapshot  *facts.Snapshot
	Ongoing   []string
	Schedule  goals.Schedule
}

// Options configures a Pool.
type Options struct {
	Workers int
	// QueueSize bounds the number of queued requests. Zero is unbounded.
	QueueSize int
	// MaxExpansions is passed to each worker's planner.
	MaxExpansions int
	// ReplanRate is the sustained per-requester submission rate per second.
	// Zero disables throttling.
	ReplanRate  float64
	ReplanBurst int
	// SelectorFloor is applied when HasSelectorFloor is set.
	SelectorFloor    float64
	HasSelectorFloor bool
	Logger           *slog.Logger
	Exprs            *exprcache.Cache
}

// TickStats summarises one Tick.
type TickStats struct {
	Delivered  int
	Discarded  int
	Dispatched int
}

type requester struct {
	limiter *rate.Limiter
	// current is the id of the queued or in-flight request, if any.
	current uuid.UUID
}

type task struct {
	id  uuid.UUID
	req Request
}

// Pool is the worker pool. All methods are safe for concurrent use, but
// results are only ever delivered from Tick.
type Pool struct {
	opts   Options
	defs   Definitions
	sink   ResultSink
	logger *slog.Logger

	results chan Result

	mu         sync.Mutex
	requesters map[string]*requester
	// running maps a requester to the request a worker holds for it. It
	// outlives Unregister so a re-registered id cannot run twice at once.
	running    map[string]uuid.UUID
	queue      []task
	workers    []*worker
	inFlight   int
	started    bool
	closed     bool
	cancel     context.CancelFunc
	group      *errgroup.Group
}

// New constructs a Pool. Workers are not running until Start.
func New(opts Options, defs Definitions, sink ResultSink) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ReplanBurst <= 0 {
		opts.ReplanBurst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		opts:       opts,
		defs:       defs,
		sink:       sink,
		logger:     logger,
		results:    make(chan Result, opts.Workers),
		requesters: make(map[string]*requester),
		running:    make(map[string]uuid.UUID),
	}

	var needs map[string]struct{}
	if names := defs.Needs(); names != nil {
		needs = make(map[string]struct{}, len(names))
		for _, n := range names {
			needs[n] = struct{}{}
		}
	}
	for i := range opts.Workers {
		p.workers = append(p.workers, newWorker(i, opts, needs, logger))
	}
	return p
}

// Register makes id eligible for Submit. Registering an existing id is a
// no-op.
func (p *Pool) Register(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.requesters[id]; ok {
		return
	}
	r := &requester{}
	if p.opts.ReplanRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(p.opts.ReplanRate), p.opts.ReplanBurst)
	}
	p.requesters[id] = r
}

// Unregister forgets id. Queued requests are dropped; a result for an
// in-flight request is discarded when drained. Until then, Submit for a
// re-registered id fails with ErrDuplicateRequest.
func (p *Pool) Unregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.requesters[id]; !ok {
		return
	}
	delete(p.requesters, id)
	kept := p.queue[:0]
	for _, t := range p.queue {
		if t.req.Requester != id {
			kept = append(kept, t)
		}
	}
	clear(p.queue[len(kept):])
	p.queue = kept
}

// Submit enqueues a request and returns its id.
func (p *Pool) Submit(req Request) (uuid.UUID, error) {
	if req.Snapshot == nil {
		return uuid.Nil, fmt.Errorf("%w: no snapshot for %q", ErrInvalidRequest, req.Requester)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return uuid.Nil, ErrClosed
	}
	r, ok := p.requesters[req.Requester]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownRequester, req.Requester)
	}
	if _, busy := p.running[req.Requester]; busy || r.current != uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrDuplicateRequest, req.Requester)
	}
	if p.opts.QueueSize > 0 && len(p.queue) >= p.opts.QueueSize {
		return uuid.Nil, fmt.Errorf("%w: queue full", ErrThrottled)
	}
	if r.limiter != nil && !r.limiter.Allow() {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrThrottled, req.Requester)
	}
	id := uuid.New()
	r.current = id
	p.queue = append(p.queue, task{id: id, req: req})
	p.logger.Debug("request queued", "requester", req.Requester, "request", id)
	return id, nil
}

// Start launches the workers. They stop when ctx is cancelled or Close is
// called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.started {
		return ErrStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.run(gCtx, p.defs, p.results)
		})
	}
	p.cancel = cancel
	p.group = g
	p.started = true
	p.logger.Info("scheduler started", "workers", len(p.workers))
	return nil
}

// Tick drains finished results into the sink and dispatches queued requests
// to idle workers. It never blocks on a worker.
func (p *Pool) Tick() TickStats {
	var stats TickStats
	var deliver []Result

	p.mu.Lock()
drain:
	for {
		select {
		case res := <-p.results:
			p.workers[res.Worker].busy = false
			p.inFlight--
			if p.running[res.Requester] == res.RequestID {
				delete(p.running, res.Requester)
			}
			r, ok := p.requesters[res.Requester]
			if !ok || r.current != res.RequestID {
				stats.Discarded++
				p.logger.Debug("discarding stale result", "requester", res.Requester, "request", res.RequestID)
				continue
			}
			r.current = uuid.Nil
			deliver = append(deliver, res)
		default:
			break drain
		}
	}
	if p.started && !p.closed {
		stats.Dispatched = p.dispatchLocked()
	}
	p.mu.Unlock()

	// outside the lock so sinks may resubmit
	for _, res := range deliver {
		p.deliver(res)
		stats.Delivered++
	}
	return stats
}

func (p *Pool) dispatchLocked() int {
	n := 0
	for _, w := range p.workers {
		if len(p.queue) == 0 {
			break
		}
		if w.busy {
			continue
		}
		t := p.queue[0]
		p.queue[0] = task{}
		p.queue = p.queue[1:]
		w.busy = true
		p.inFlight++
		p.running[t.req.Requester] = t.id
		// idle workers have an empty buffered slot
		w.tasks <- t
		n++
	}
	return n
}

func (p *Pool) deliver(res Result) {
	if p.sink == nil {
		return
	}
	p.sink.OnGoalSelected(res.Requester, res.GoalID)
	switch res.Outcome {
	case OutcomePlanFound:
		p.sink.OnPlanFound(res.Requester, res.GoalID, res.Plan.Actions)
	case OutcomePlanFailed:
		p.sink.OnPlanFailed(res.Requester, res.GoalID, res.Reason)
	}
}

// Run starts the pool if needed and ticks every interval until ctx is done,
// then closes the pool.
func (p *Pool) Run(ctx context.Context, interval time.Duration) error {
	if err := p.Start(ctx); err != nil && !errors.Is(err, ErrStarted) {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.Close()
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Close stops the workers and waits for them. Queued and in-flight requests
// are dropped without delivery.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue = nil
	cancel, g := p.cancel, p.group
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := g.Wait()
	p.logger.Info("scheduler stopped")
	return err
}

// Pending returns the number of queued requests.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// InFlight returns the number of requests held by workers.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return len(p.workers) }
