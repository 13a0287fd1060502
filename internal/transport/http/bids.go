package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/app"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

// BidPlacer is the minimal interface the bid endpoint needs.
type BidPlacer interface {
	PlaceBid(ctx context.Context, in app.PlaceBidInput) (domain.Bid, error)
}

type placeBidRequest struct {
	BidderID string `json:"bidder_id"`
	Amount   string `json:"amount"`
}

func handlePlaceBid(w http.ResponseWriter, r *http.Request, bids BidPlacer, auctionID string) {
	var req placeBidRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidAmount, "invalid amount")
		return
	}

	bid, err := bids.PlaceBid(r.Context(), app.PlaceBidInput{
		AuctionID: auctionID,
		BidderID:  req.BidderID,
		Amount:    amount,
	})
	if err != nil {
		writeBidError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toBidResponse(bid))
}

func writeBidError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBidderRequired):
		writeError(w, http.StatusBadRequest, codeBidderRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrAuctionNotFound):
		writeError(w, http.StatusNotFound, codeAuctionNotFound, err.Error())
	case errors.Is(err, domain.ErrAuctionNotActive):
		writeError(w, http.StatusConflict, codeAuctionNotActive, err.Error())
	case errors.Is(err, domain.ErrAmountTooLow):
		writeError(w, http.StatusUnprocessableEntity, codeAmountTooLow, err.Error())
	case errors.Is(err, domain.ErrAlreadyHighestBidder):
		writeError(w, http.StatusConflict, codeAlreadyHighestBidder, err.Error())
	case errors.Is(err, domain.ErrStaleVersion):
		writeError(w, http.StatusConflict, codeStaleVersion, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
