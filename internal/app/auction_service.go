package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/clock"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/notify"
)

// AuctionRepository is the store surface for the listing workflow. State
// fields are only ever written through conditional updates; the repository
// shares TransitionState with the reconciler.
type AuctionRepository interface {
	CreateAuction(ctx context.Context, a domain.Auction) error
	GetAuction(ctx context.Context, id string) (domain.Auction, error)
	ListAuctions(ctx context.Context, state *domain.AuctionState) ([]domain.Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error)
	TransitionState(ctx context.Context, id string, expectedVersion int64, newState domain.AuctionState, now time.Time) (int64, error)
}

type AuctionService struct {
	repo   AuctionRepository
	clock  clock.Clock
	bridge *notify.Bridge
}

func NewAuctionService(repo AuctionRepository, clk clock.Clock, bridge *notify.Bridge) *AuctionService {
	return &AuctionService{
		repo:   repo,
		clock:  clk,
		bridge: bridge,
	}
}

type CreateAuctionInput struct {
	SellerID      string
	Title         string
	StartingPrice decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
	// Draft keeps the auction out of the reconciler's hands until it is
	// published.
	Draft bool
}

func (s *AuctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (domain.Auction, error) {
	if in.Title == "" {
		return domain.Auction{}, domain.ErrTitleRequired
	}
	if in.SellerID == "" {
		return domain.Auction{}, domain.ErrSellerRequired
	}
	if in.StartingPrice.IsNegative() {
		return domain.Auction{}, domain.ErrInvalidAmount
	}
	if !in.StartTime.Before(in.EndTime) {
		return domain.Auction{}, domain.ErrInvalidSchedule
	}

	now := s.clock.Now()
	state := domain.AuctionStateScheduled
	if in.Draft {
		state = domain.AuctionStateDraft
	}

	auction := domain.Auction{
		ID:         newID(),
		SellerID:   in.SellerID,
		Title:      in.Title,
		State:      state,
		StartTime:  in.StartTime.UTC(),
		EndTime:    in.EndTime.UTC(),
		CurrentBid: in.StartingPrice,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return domain.Auction{}, err
	}
	return auction, nil
}

func (s *AuctionService) GetAuction(ctx context.Context, id string) (domain.Auction, error) {
	return s.repo.GetAuction(ctx, id)
}

// ListAuctions returns auctions, optionally filtered by state. The filter
// string comes straight from the transport layer and is validated here.
func (s *AuctionService) ListAuctions(ctx context.Context, stateFilter string) ([]domain.Auction, error) {
	var state *domain.AuctionState
	if stateFilter != "" {
		parsed, err := domain.ParseAuctionState(stateFilter)
		if err != nil {
			return nil, err
		}
		state = &parsed
	}
	return s.repo.ListAuctions(ctx, state)
}

// ListBids returns the accepted-bid history for an auction, newest first.
func (s *AuctionService) ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	if _, err := s.repo.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.repo.ListBids(ctx, auctionID)
}

// PublishAuction moves a draft into the scheduled state so the reconciler
// starts tracking it.
func (s *AuctionService) PublishAuction(ctx context.Context, id string) (domain.Auction, error) {
	auction, err := s.repo.GetAuction(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if !domain.ValidTransition(auction.State, domain.AuctionStateScheduled) {
		return domain.Auction{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	version, err := s.repo.TransitionState(ctx, auction.ID, auction.Version, domain.AuctionStateScheduled, now)
	if err != nil {
		return domain.Auction{}, err
	}

	auction.State = domain.AuctionStateScheduled
	auction.Version = version
	auction.UpdatedAt = now
	return auction, nil
}

// CancelAuction ends an auction ahead of time. Cancellation is the one
// shortcut in the lifecycle: any non-terminal state jumps straight to ended.
// An ended event is emitted so watchers learn the final standing.
func (s *AuctionService) CancelAuction(ctx context.Context, id string) (domain.Auction, error) {
	auction, err := s.repo.GetAuction(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if !domain.ValidTransition(auction.State, domain.AuctionStateEnded) {
		return domain.Auction{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	version, err := s.repo.TransitionState(ctx, auction.ID, auction.Version, domain.AuctionStateEnded, now)
	if err != nil {
		return domain.Auction{}, err
	}

	auction.State = domain.AuctionStateEnded
	auction.Version = version
	auction.UpdatedAt = now
	s.bridge.AuctionEnded(ctx, auction)
	return auction, nil
}
