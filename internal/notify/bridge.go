// Package notify derives lifecycle notifications from auction transitions
// and accepted bids, and hands them to a delivery sink. The bridge is the
// only producer of lifecycle events; callers guarantee each distinct
// transition is reported once, so each emits at most one event of each kind.
package notify

import (
	"context"
	"log"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

// Sink delivers lifecycle events downstream. Delivery failures are the
// sink's problem to surface; the bridge never blocks the engine on them.
type Sink interface {
	Deliver(ctx context.Context, ev domain.LifecycleEvent) error
}

type Bridge struct {
	sink   Sink
	logger *log.Logger
}

func NewBridge(sink Sink, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Bridge{sink: sink, logger: logger}
}

// AuctionStarted reports a scheduled->active transition.
func (b *Bridge) AuctionStarted(ctx context.Context, a domain.Auction) {
	b.emit(ctx, domain.LifecycleEvent{
		AuctionID:  a.ID,
		Kind:       domain.EventAuctionStarted,
		OccurredAt: a.UpdatedAt,
		EndTime:    a.EndTime,
	})
}

// EndingSoon reports that an active auction's remaining window dropped below
// the configured threshold. Callers emit it once per auction.
func (b *Bridge) EndingSoon(ctx context.Context, a domain.Auction) {
	b.emit(ctx, domain.LifecycleEvent{
		AuctionID:  a.ID,
		Kind:       domain.EventEndingSoon,
		OccurredAt: a.UpdatedAt,
		Amount:     a.CurrentBid,
		BidderID:   a.HighestBidderID,
		EndTime:    a.EndTime,
	})
}

// PriceChanged reports an accepted bid.
func (b *Bridge) PriceChanged(ctx context.Context, a domain.Auction, bid domain.Bid) {
	b.emit(ctx, domain.LifecycleEvent{
		AuctionID:  a.ID,
		Kind:       domain.EventPriceChanged,
		OccurredAt: bid.PlacedAt,
		Amount:     bid.Amount,
		BidderID:   bid.BidderID,
		EndTime:    a.EndTime,
	})
}

// AuctionEnded reports an active->ended transition. The payload carries the
// final price and winner so downstream can resolve won/lost notifications;
// BidderID is empty when the auction closed without bids.
func (b *Bridge) AuctionEnded(ctx context.Context, a domain.Auction) {
	b.emit(ctx, domain.LifecycleEvent{
		AuctionID:  a.ID,
		Kind:       domain.EventAuctionEnded,
		OccurredAt: a.UpdatedAt,
		Amount:     a.CurrentBid,
		BidderID:   a.HighestBidderID,
	})
}

func (b *Bridge) emit(ctx context.Context, ev domain.LifecycleEvent) {
	if err := b.sink.Deliver(ctx, ev); err != nil {
		// Delivery is best effort; a failing sink must never fail the
		// transition or bid that produced the event.
		b.logger.Printf("notify deliver kind=%s auction=%s: %v", ev.Kind, ev.AuctionID, err)
	}
}

// LogSink writes events to a logger. It is the default sink when no broker
// is configured.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Deliver(_ context.Context, ev domain.LifecycleEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(
		"lifecycle event kind=%s auction=%s bidder=%s amount=%s",
		ev.Kind, ev.AuctionID, ev.BidderID, ev.Amount,
	)
	return nil
}
