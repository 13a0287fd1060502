package domain

import "time"

// NextState returns the state the auction is due for at the given instant
// and whether a transition applies. Only one step is taken per call: an
// auction promoted to active is not ended by the same invocation even if its
// end time has also passed. Calling it on an auction that is not due, or
// already past the target state, is a no-op, which makes reconciliation
// passes safe to repeat.
func NextState(a Auction, now time.Time) (AuctionState, bool) {
	switch a.State {
	case AuctionStateScheduled:
		if !now.Before(a.StartTime) {
			return AuctionStateActive, true
		}
	case AuctionStateActive:
		if !now.Before(a.EndTime) {
			return AuctionStateEnded, true
		}
	}
	return a.State, false
}

// ValidTransition reports whether moving from one state to another is a
// legal lifecycle step. The lifecycle is linear and monotonic; the only
// shortcut is cancellation, which jumps straight to ended.
func ValidTransition(from, to AuctionState) bool {
	switch from {
	case AuctionStateDraft:
		return to == AuctionStateScheduled || to == AuctionStateEnded
	case AuctionStateScheduled:
		return to == AuctionStateActive || to == AuctionStateEnded
	case AuctionStateActive:
		return to == AuctionStateEnded
	}
	return false
}
