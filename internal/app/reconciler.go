package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/clock"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/notify"
)

// ErrPassInProgress is returned when a reconciliation pass is requested
// while another one is still running. The caller lost nothing: the running
// pass covers the same due auctions.
var ErrPassInProgress = errors.New("reconciliation pass already running")

// ReconcilerStore is the slice of the auction store reconciliation needs.
// The conditional writes return the new version or domain.ErrStaleVersion /
// domain.ErrAuctionNotFound, mirroring ApplyBid.
type ReconcilerStore interface {
	Ping(ctx context.Context) error
	DueForActivation(ctx context.Context, now time.Time) ([]domain.Auction, error)
	DueForExpiry(ctx context.Context, now time.Time) ([]domain.Auction, error)
	DueForEndingSoon(ctx context.Context, now, cutoff time.Time) ([]domain.Auction, error)
	TransitionState(ctx context.Context, id string, expectedVersion int64, newState domain.AuctionState, now time.Time) (int64, error)
	MarkEndingSoonNotified(ctx context.Context, id string, expectedVersion int64) (int64, error)
}

// PassResult reports what one reconciliation pass changed.
type PassResult struct {
	Activated  int
	Ended      int
	EndingSoon int
}

// Reconciler keeps auction states in step with wall-clock time. It owns a
// periodic background pass and exposes RunOnce as a synchronous manual
// trigger; both share a single-flight guard so at most one pass is ever in
// flight. Individual auctions are written with their optimistic-concurrency
// version, never under a global lock, so bid placement stays fully
// concurrent with reconciliation.
type Reconciler struct {
	store    ReconcilerStore
	clock    clock.Clock
	bridge   *notify.Bridge
	logger   *log.Logger
	interval time.Duration
	// endingSoonThreshold is how close to its end an active auction must be
	// before the one-time ending-soon event fires.
	endingSoonThreshold time.Duration

	inFlight atomic.Bool
	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

func NewReconciler(store ReconcilerStore, clk clock.Clock, bridge *notify.Bridge, logger *log.Logger, opts ...ReconcilerOption) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	r := &Reconciler{
		store:               store,
		clock:               clk,
		bridge:              bridge,
		logger:              logger,
		interval:            60 * time.Second,
		endingSoonThreshold: 10 * time.Minute,
		stop:                make(chan struct{}),
		done:                make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReconcilerOption func(*Reconciler)

// WithInterval overrides the period between background passes.
func WithInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithEndingSoonThreshold overrides the ending-soon warning window.
func WithEndingSoonThreshold(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.endingSoonThreshold = d
		}
	}
}

// Start launches the periodic loop. A second Start is a no-op.
func (r *Reconciler) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run()
}

// Stop halts the loop and waits for it to exit. A pass already in flight
// finishes normally; Stop never leaves an auction half-transitioned. Stop
// on a reconciler that was never started returns immediately.
func (r *Reconciler) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	if r.started.Load() {
		<-r.done
	}
}

func (r *Reconciler) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			res, err := r.RunOnce(context.Background())
			switch {
			case errors.Is(err, ErrPassInProgress):
				r.logger.Printf("reconcile tick skipped: pass already running")
			case err != nil:
				// Transient failures (an unreachable store above all) are
				// retried on the next tick; the loop itself never dies.
				r.logger.Printf("reconcile pass failed: %v", err)
			default:
				r.logger.Printf(
					"reconcile pass done activated=%d ended=%d ending_soon=%d",
					res.Activated, res.Ended, res.EndingSoon,
				)
			}
		}
	}
}

// RunOnce performs exactly one reconciliation pass and reports what it did.
// It is the manual trigger surface for operator tooling and tests. When
// another pass is in flight it returns ErrPassInProgress without touching
// the store.
func (r *Reconciler) RunOnce(ctx context.Context) (PassResult, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return PassResult{}, ErrPassInProgress
	}
	defer r.inFlight.Store(false)

	return r.pass(ctx)
}

func (r *Reconciler) pass(ctx context.Context) (PassResult, error) {
	if err := r.store.Ping(ctx); err != nil {
		return PassResult{}, fmt.Errorf("%w: %v", domain.ErrStoreUnreachable, err)
	}

	now := r.clock.Now()

	// Both due sets are scanned before any write. An auction promoted in
	// this pass therefore cannot show up in the expiry set, even when its
	// end time has already passed: it gets ended on the next pass.
	dueActivation, err := r.store.DueForActivation(ctx, now)
	if err != nil {
		return PassResult{}, fmt.Errorf("scan due activations: %w", err)
	}
	dueExpiry, err := r.store.DueForExpiry(ctx, now)
	if err != nil {
		return PassResult{}, fmt.Errorf("scan due expiries: %w", err)
	}

	var res PassResult
	for _, a := range dueActivation {
		if r.transition(ctx, a, now, domain.AuctionStateActive) {
			a.State = domain.AuctionStateActive
			a.UpdatedAt = now
			r.bridge.AuctionStarted(ctx, a)
			res.Activated++
		}
	}
	for _, a := range dueExpiry {
		if r.transition(ctx, a, now, domain.AuctionStateEnded) {
			a.State = domain.AuctionStateEnded
			a.UpdatedAt = now
			r.bridge.AuctionEnded(ctx, a)
			res.Ended++
		}
	}

	warned, err := r.warnEndingSoon(ctx, now)
	if err != nil {
		return res, err
	}
	res.EndingSoon = warned

	return res, nil
}

// transition applies one state machine step to one auction. Failures are
// logged and skipped so one bad record never blocks the rest of the pass;
// version conflicts just mean a concurrent write got there first and the
// auction is picked up again next pass if still due.
func (r *Reconciler) transition(ctx context.Context, a domain.Auction, now time.Time, target domain.AuctionState) bool {
	next, ok := domain.NextState(a, now)
	if !ok || next != target {
		// Already transitioned, or not actually due: a safe no-op.
		return false
	}

	if _, err := r.store.TransitionState(ctx, a.ID, a.Version, next, now); err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleVersion):
			r.logger.Printf("reconcile auction=%s lost race to %s, retrying next pass", a.ID, next)
		case errors.Is(err, domain.ErrAuctionNotFound):
			r.logger.Printf("reconcile auction=%s vanished before %s", a.ID, next)
		default:
			r.logger.Printf("reconcile auction=%s transition to %s: %v", a.ID, next, err)
		}
		return false
	}
	return true
}

func (r *Reconciler) warnEndingSoon(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(r.endingSoonThreshold)
	due, err := r.store.DueForEndingSoon(ctx, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan ending soon: %w", err)
	}

	warned := 0
	for _, a := range due {
		// The persisted flag makes the warning one-shot across passes and
		// across restarts.
		if _, err := r.store.MarkEndingSoonNotified(ctx, a.ID, a.Version); err != nil {
			if !errors.Is(err, domain.ErrStaleVersion) && !errors.Is(err, domain.ErrAuctionNotFound) {
				r.logger.Printf("reconcile auction=%s mark ending soon: %v", a.ID, err)
			}
			continue
		}
		a.EndingSoonNotified = true
		a.UpdatedAt = now
		r.bridge.EndingSoon(ctx, a)
		warned++
	}
	return warned, nil
}
