package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventAuctionStarted EventKind = "auction_started"
	EventEndingSoon     EventKind = "ending_soon"
	EventPriceChanged   EventKind = "price_changed"
	EventAuctionEnded   EventKind = "auction_ended"
)

// LifecycleEvent is a notification-worthy occurrence derived from a state
// transition or an accepted bid. Events are transient: the engine hands them
// to a delivery sink and keeps no record of them. Each distinct transition
// produces at most one event of each kind; delivery guarantees beyond that
// are the sink's concern.
type LifecycleEvent struct {
	AuctionID  string
	Kind       EventKind
	OccurredAt time.Time

	// Amount and BidderID carry the new price and bidder for price changes,
	// and the final price and winner for auction-ended events. BidderID is
	// empty when an auction ends without bids.
	Amount   decimal.Decimal
	BidderID string

	// EndTime is set on started and ending-soon events so downstream alerts
	// can show the remaining window.
	EndTime time.Time
}
