package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/clock"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/notify"
)

// BidStore is the slice of the auction store the bid ledger needs. ApplyBid
// must atomically insert the bid and update the auction's bid fields,
// conditional on the version read at precondition time: it returns the new
// version, or domain.ErrStaleVersion when a concurrent bid or auto-end won
// the race.
type BidStore interface {
	GetAuction(ctx context.Context, id string) (domain.Auction, error)
	ApplyBid(ctx context.Context, auctionID string, expectedVersion int64, bid domain.Bid) (int64, error)
}

// BidService enforces the highest-bid invariant: at any time an auction's
// current bid equals the amount of its most recently accepted bid, and no
// two bids are ever applied on top of the same auction snapshot.
type BidService struct {
	store           BidStore
	clock           clock.Clock
	bridge          *notify.Bridge
	minIncrement    decimal.Decimal
	allowSelfOutbid bool
}

func NewBidService(store BidStore, clk clock.Clock, bridge *notify.Bridge, opts ...BidServiceOption) *BidService {
	svc := &BidService{
		store:        store,
		clock:        clk,
		bridge:       bridge,
		minIncrement: decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type BidServiceOption func(*BidService)

// WithMinIncrement sets how far a bid must exceed the current one.
func WithMinIncrement(d decimal.Decimal) BidServiceOption {
	return func(s *BidService) {
		if !d.IsNegative() {
			s.minIncrement = d
		}
	}
}

// WithSelfOutbid allows the current highest bidder to raise their own bid.
func WithSelfOutbid(allowed bool) BidServiceOption {
	return func(s *BidService) {
		s.allowSelfOutbid = allowed
	}
}

type PlaceBidInput struct {
	AuctionID string
	BidderID  string
	Amount    decimal.Decimal
}

// PlaceBid validates the bid against the latest auction snapshot and applies
// it with a conditional write. Rejections are sentinel errors:
// ErrAuctionNotActive, ErrAmountTooLow, ErrAlreadyHighestBidder, and
// ErrStaleVersion when the snapshot was outdated by a concurrent writer.
// A stale bid is never silently applied; the caller retries with fresh state.
func (s *BidService) PlaceBid(ctx context.Context, in PlaceBidInput) (domain.Bid, error) {
	if in.BidderID == "" {
		return domain.Bid{}, domain.ErrBidderRequired
	}
	if !in.Amount.IsPositive() {
		return domain.Bid{}, domain.ErrInvalidAmount
	}

	auction, err := s.store.GetAuction(ctx, in.AuctionID)
	if err != nil {
		return domain.Bid{}, err
	}

	now := s.clock.Now()
	if auction.State != domain.AuctionStateActive {
		return domain.Bid{}, domain.ErrAuctionNotActive
	}
	// The reconciler may not have ended an overdue auction yet; reject
	// rather than accept a bid after the window closed.
	if !now.Before(auction.EndTime) {
		return domain.Bid{}, domain.ErrAuctionNotActive
	}
	if !s.allowSelfOutbid && auction.HighestBidderID == in.BidderID {
		return domain.Bid{}, domain.ErrAlreadyHighestBidder
	}
	if in.Amount.LessThan(s.minimumAcceptable(auction)) {
		return domain.Bid{}, domain.ErrAmountTooLow
	}

	bid := domain.Bid{
		ID:        newID(),
		AuctionID: auction.ID,
		BidderID:  in.BidderID,
		Amount:    in.Amount,
		PlacedAt:  now,
	}

	newVersion, err := s.store.ApplyBid(ctx, auction.ID, auction.Version, bid)
	if err != nil {
		return domain.Bid{}, err
	}

	auction.CurrentBid = bid.Amount
	auction.HighestBidderID = bid.BidderID
	auction.BidCount++
	auction.Version = newVersion
	s.bridge.PriceChanged(ctx, auction, bid)

	return bid, nil
}

// minimumAcceptable is the lowest amount the ledger accepts: the starting
// price while no bid stands, then current bid plus the increment.
func (s *BidService) minimumAcceptable(a domain.Auction) decimal.Decimal {
	if !a.HasBids() {
		return a.CurrentBid
	}
	return a.CurrentBid.Add(s.minIncrement)
}
