// Package syncpoll keeps a participant's view of their submission statuses in
// step with the server by polling. Decisions are terminal, so re-reading is
// always safe; a decision shows up locally within one interval.
package syncpoll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"learnhub/bounty-pipeline/internal/domain"

	"github.com/go-co-op/gocron/v2"
)

var ErrAlreadyStarted = errors.New("poller already started")

// View is the participant-side state of one submission.
type View struct {
	ID        string                  `json:"id"`
	BountyID  string                  `json:"bountyId"`
	Status    domain.SubmissionStatus `json:"status"`
	AwardedXP int64                   `json:"awardedXp"`
	DecidedAt *time.Time              `json:"decidedAt,omitempty"`
	Notice    string                  `json:"notice,omitempty"`
}

func (v View) same(o View) bool {
	if v.ID != o.ID || v.Status != o.Status || v.AwardedXP != o.AwardedXP {
		return false
	}
	if (v.DecidedAt == nil) != (o.DecidedAt == nil) {
		return false
	}
	return v.DecidedAt == nil || v.DecidedAt.Equal(*o.DecidedAt)
}

// Change is one bounty whose view differs from the last snapshot. Before is
// nil for a newly seen submission.
type Change struct {
	BountyID string
	Before   *View
	After    *View
}

// Fetcher returns the caller's submissions keyed by bounty id.
type Fetcher interface {
	FetchSubmissions(ctx context.Context, bountyIDs []string) (map[string]View, error)
}

// Config for a Poller.
type Config struct {
	Fetcher   Fetcher
	Wallet    string // for logging only; the fetcher carries the credentials
	BountyIDs []string
	Interval  time.Duration
	// OnChange runs after a tick that found differences, with the new
	// snapshot. It is never called concurrently.
	OnChange func(snapshot map[string]View, changes []Change)
	Logger   *slog.Logger
}

// Poller runs one reconciliation at a time and keeps the last-known-good
// snapshot across failed fetches.
type Poller struct {
	fetcher  Fetcher
	wallet   string
	interval time.Duration
	onChange func(map[string]View, []Change)
	logger   *slog.Logger

	inFlight atomic.Bool

	mu        sync.Mutex
	bountyIDs []string
	snapshot  map[string]View

	runMu sync.Mutex
	run   *run
}

// run is one Start..Stop cycle. A watcher only ever stops its own run.
type run struct {
	sched  gocron.Scheduler
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) (*Poller, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("syncpoll: fetcher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		fetcher:   cfg.Fetcher,
		wallet:    cfg.Wallet,
		interval:  cfg.Interval,
		onChange:  cfg.OnChange,
		logger:    cfg.Logger,
		bountyIDs: append([]string(nil), cfg.BountyIDs...),
		snapshot:  map[string]View{},
	}, nil
}

// SetBountyIDs replaces the visible set and forgets bounties no longer in it.
func (p *Poller) SetBountyIDs(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bountyIDs = append([]string(nil), ids...)
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for id := range p.snapshot {
		if _, ok := keep[id]; !ok {
			delete(p.snapshot, id)
		}
	}
}

// Snapshot returns a copy of the last-known-good view.
func (p *Poller) Snapshot() map[string]View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyViews(p.snapshot)
}

// Tick performs one reconciliation. It returns false without fetching when a
// previous tick is still running. A fetch error leaves the snapshot as is.
func (p *Poller) Tick(ctx context.Context) (bool, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer p.inFlight.Store(false)

	p.mu.Lock()
	ids := append([]string(nil), p.bountyIDs...)
	p.mu.Unlock()
	if len(ids) == 0 {
		return true, nil
	}

	fetched, err := p.fetcher.FetchSubmissions(ctx, ids)
	if err != nil {
		p.logger.Warn("submission sync failed, keeping last snapshot", "wallet", p.wallet, "error", err)
		return true, err
	}

	p.mu.Lock()
	changes := diff(p.snapshot, fetched, p.bountyIDs)
	var snap map[string]View
	if len(changes) > 0 {
		for _, c := range changes {
			if c.After == nil {
				delete(p.snapshot, c.BountyID)
			} else {
				p.snapshot[c.BountyID] = *c.After
			}
		}
		snap = copyViews(p.snapshot)
	}
	p.mu.Unlock()

	if len(changes) > 0 {
		p.logger.Info("submission statuses changed", "wallet", p.wallet, "changes", len(changes))
		if p.onChange != nil {
			p.onChange(snap, changes)
		}
	}
	return true, nil
}

// Start schedules Tick every interval, beginning immediately. Ticks never
// overlap: a slow tick pushes the next one back. The poller stops when ctx is
// done or Stop is called, and may be started again afterwards.
func (p *Poller) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.run != nil {
		return ErrAlreadyStarted
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)

	_, err = sched.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() {
			_, _ = p.Tick(runCtx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return err
	}
	sched.Start()

	r := &run{sched: sched, cancel: cancel, done: make(chan struct{})}
	p.run = r

	go func() {
		select {
		case <-runCtx.Done():
			p.runMu.Lock()
			p.stopLocked(r)
			p.runMu.Unlock()
		case <-r.done:
		}
	}()
	return nil
}

// Stop cancels any running tick and shuts the scheduler down. Safe to call
// more than once.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked(p.run)
}

// stopLocked tears r down if it is still the current run. Callers hold runMu.
func (p *Poller) stopLocked(r *run) {
	if r == nil || p.run != r {
		return
	}
	p.run = nil
	r.cancel()
	if err := r.sched.Shutdown(); err != nil {
		p.logger.Warn("poller shutdown", "error", err)
	}
	close(r.done)
	p.logger.Info("submission poller stopped", "wallet", p.wallet)
}

// running reports whether a scheduler is active.
func (p *Poller) running() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.run != nil
}

// diff compares old and fetched over the visible ids only.
func diff(old, fetched map[string]View, visible []string) []Change {
	var changes []Change
	for _, id := range visible {
		before, had := old[id]
		after, has := fetched[id]
		switch {
		case !had && !has:
			continue
		case had && has && before.same(after):
			continue
		}
		c := Change{BountyID: id}
		if had {
			b := before
			c.Before = &b
		}
		if has {
			a := after
			c.After = &a
		}
		changes = append(changes, c)
	}
	return changes
}

func copyViews(in map[string]View) map[string]View {
	out := make(map[string]View, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
