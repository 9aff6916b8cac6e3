package studio

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"media-studio/internal/models"
	"media-studio/internal/telemetry"
)

// DefaultPollInterval is the period between job list fetches.
const DefaultPollInterval = 5 * time.Second

// JobLister fetches the authoritative job collection.
type JobLister interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
}

// PollerState is the lifecycle of a polling session.
type PollerState int

const (
	PollerIdle PollerState = iota
	PollerRunning
	PollerStopped
)

func (s PollerState) String() string {
	switch s {
	case PollerIdle:
		return "idle"
	case PollerRunning:
		return "running"
	case PollerStopped:
		return "stopped"
	}
	return "unknown"
}

// Snapshot is the poller's current view of the job collection.
type Snapshot struct {
	// Seq is the sequence number of the fetch that produced Jobs.
	Seq       uint64
	Jobs      []models.Job
	FetchedAt time.Time
	// Loaded is false until the first successful fetch.
	Loaded bool
	// Err is the failure of the most recent cycle, nil if it succeeded.
	Err error
}

// Poller periodically refreshes a job collection. One goroutine owns the timer
// and performs fetches one at a time; a response is applied only when it belongs
// to the most recently issued fetch of a still running session.
type Poller struct {
	lister   JobLister
	interval time.Duration
	clock    clockwork.Clock
	log      zerolog.Logger

	refresh chan struct{}

	mu      sync.Mutex
	state   PollerState
	snap    Snapshot
	issued  uint64
	seen    map[string]models.Status
	subs    map[int]chan Snapshot
	nextSub int
	cancel  context.CancelFunc
	done    chan struct{}
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithInterval overrides DefaultPollInterval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock substitutes the time source.
func WithClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

// NewPoller builds an idle poller over lister.
func NewPoller(lister JobLister, opts ...PollerOption) *Poller {
	p := &Poller{
		lister:   lister,
		interval: DefaultPollInterval,
		clock:    clockwork.NewRealClock(),
		log:      zerolog.Nop(),
		refresh:  make(chan struct{}, 1),
		seen:     make(map[string]models.Status),
		subs:     make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling: one fetch immediately, then one per interval measured
// from the end of the previous fetch. A session runs at most once; starting a
// running poller returns ErrPollerRunning and a stopped one ErrPollerStopped.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case PollerRunning:
		return ErrPollerRunning
	case PollerStopped:
		return ErrPollerStopped
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = PollerRunning
	go p.loop(runCtx)
	p.log.Debug().Dur("interval", p.interval).Msg("poller started")
	return nil
}

// Stop ends the session. The in-flight fetch, if any, is cancelled and its result
// discarded; no fetch is issued afterwards. Subscriber channels are closed.
func (p *Poller) Stop() {
	p.mu.Lock()
	switch p.state {
	case PollerIdle:
		p.state = PollerStopped
		p.closeSubsLocked()
		p.mu.Unlock()
		return
	case PollerStopped:
		p.mu.Unlock()
		return
	}
	p.state = PollerStopped
	p.closeSubsLocked()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.log.Debug().Msg("poller stopped")
}

// Refresh asks for an immediate fetch outside the regular cadence. Requests made
// while a fetch is pending or in flight coalesce into one extra fetch, after
// which the periodic timer restarts.
func (p *Poller) Refresh() error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state != PollerRunning {
		return ErrPollerNotRunning
	}
	select {
	case p.refresh <- struct{}{}:
	default:
	}
	return nil
}

// State reports the session lifecycle state.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the current view. The Jobs slice must not be modified.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Subscribe returns a channel that always holds the latest snapshot after each
// applied cycle, and a function to unsubscribe. The channel is closed when the
// poller stops.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PollerStopped {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	if p.snap.Loaded || p.snap.Err != nil {
		ch <- p.snap
	}
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		if p.state == PollerRunning {
			p.state = PollerStopped
			p.closeSubsLocked()
		}
		p.mu.Unlock()
		close(p.done)
	}()

	p.cycle(ctx)
	for {
		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		case <-p.refresh:
			timer.Stop()
		}
		p.cycle(ctx)
	}
}

func (p *Poller) cycle(ctx context.Context) {
	p.mu.Lock()
	if p.state != PollerRunning || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	// A refresh requested before this fetch starts is satisfied by it.
	select {
	case <-p.refresh:
	default:
	}
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	jobs, err := p.lister.ListJobs(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PollerRunning || ctx.Err() != nil || seq != p.issued {
		telemetry.PollFetches.WithLabelValues("discarded").Inc()
		p.log.Debug().Uint64("seq", seq).Msg("discarding superseded job fetch")
		return
	}
	if err != nil {
		telemetry.PollFetches.WithLabelValues("error").Inc()
		p.log.Warn().Err(err).Uint64("seq", seq).Msg("job fetch failed; keeping previous view")
		p.snap.Err = &TransientFetchError{Seq: seq, Cause: err}
		p.notifyLocked()
		return
	}
	telemetry.PollFetches.WithLabelValues("ok").Inc()
	p.observeLocked(jobs)
	p.snap = Snapshot{
		Seq:       seq,
		Jobs:      append([]models.Job(nil), jobs...),
		FetchedAt: p.clock.Now(),
		Loaded:    true,
	}
	p.notifyLocked()
}

// observeLocked flags jobs whose status moved backwards since the previous poll.
// The server's answer is still applied.
func (p *Poller) observeLocked(jobs []models.Job) {
	next := make(map[string]models.Status, len(jobs))
	for _, job := range jobs {
		if prev, ok := p.seen[job.ID]; ok && !models.CanTransition(prev, job.Status) {
			telemetry.PollRegression.Inc()
			p.log.Warn().
				Str("job_id", job.ID).
				Str("from", string(prev)).
				Str("to", string(job.Status)).
				Msg("job status moved backwards")
		}
		next[job.ID] = job.Status
	}
	p.seen = next
}

func (p *Poller) notifyLocked() {
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p.snap
	}
}

func (p *Poller) closeSubsLocked() {
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}
