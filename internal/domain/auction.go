package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuctionState string

const (
	AuctionStateDraft     AuctionState = "draft"
	AuctionStateScheduled AuctionState = "scheduled"
	AuctionStateActive    AuctionState = "active"
	AuctionStateEnded     AuctionState = "ended"
)

// ParseAuctionState validates a state string received from the outside.
func ParseAuctionState(s string) (AuctionState, error) {
	switch AuctionState(s) {
	case AuctionStateDraft, AuctionStateScheduled, AuctionStateActive, AuctionStateEnded:
		return AuctionState(s), nil
	}
	return "", ErrInvalidState
}

// Auction represents a listing with a bounded bidding window.
// CurrentBid starts at the starting price and only moves up while active.
// Version is the optimistic-concurrency token: every state or bid write is
// conditional on it and increments it.
type Auction struct {
	ID                 string
	SellerID           string
	Title              string
	State              AuctionState
	StartTime          time.Time
	EndTime            time.Time
	CurrentBid         decimal.Decimal
	HighestBidderID    string
	BidCount           int
	EndingSoonNotified bool
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasBids reports whether at least one bid has been accepted.
func (a Auction) HasBids() bool {
	return a.BidCount > 0
}
