package domain

import "errors"

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionNotActive     = errors.New("auction not active")
	ErrAmountTooLow         = errors.New("bid amount too low")
	ErrAlreadyHighestBidder = errors.New("already the highest bidder")
	ErrStaleVersion         = errors.New("stale auction version")
	ErrInvalidTransition    = errors.New("invalid auction state transition")
	ErrStoreUnreachable     = errors.New("auction store unreachable")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidSchedule      = errors.New("start time must precede end time")
	ErrTitleRequired        = errors.New("title required")
	ErrSellerRequired       = errors.New("seller required")
	ErrBidderRequired       = errors.New("bidder required")
	ErrInvalidState         = errors.New("invalid auction state")
	ErrInvalidID            = errors.New("invalid id")
)
