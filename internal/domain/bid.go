package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is an accepted bid. Bids are append-only: once written they are never
// mutated or deleted, so the bids table doubles as the audit trail.
type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
	PlacedAt  time.Time
}
