package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/app"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

// AuctionListingService is the minimal interface the auction endpoints need.
type AuctionListingService interface {
	CreateAuction(ctx context.Context, in app.CreateAuctionInput) (domain.Auction, error)
	GetAuction(ctx context.Context, id string) (domain.Auction, error)
	ListAuctions(ctx context.Context, stateFilter string) ([]domain.Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error)
	PublishAuction(ctx context.Context, id string) (domain.Auction, error)
	CancelAuction(ctx context.Context, id string) (domain.Auction, error)
}

// HandleAuctions serves the /auctions collection: POST creates a listing,
// GET lists, optionally filtered by ?state=.
func HandleAuctions(svc AuctionListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			auctions, err := svc.ListAuctions(r.Context(), r.URL.Query().Get("state"))
			if err != nil {
				if errors.Is(err, domain.ErrInvalidState) {
					writeError(w, http.StatusBadRequest, codeInvalidState, err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]auctionResponse, 0, len(auctions))
			for _, a := range auctions {
				resp = append(resp, toAuctionResponse(a))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var req createAuctionRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			in, err := req.toInput()
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
				return
			}

			auction, err := svc.CreateAuction(r.Context(), in)
			if err != nil {
				writeAuctionError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(toAuctionResponse(auction))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAuctionByID serves /auctions/{id} and its subresources:
// GET /auctions/{id}, GET /auctions/{id}/bids, POST /auctions/{id}/bids,
// POST /auctions/{id}/publish, POST /auctions/{id}/cancel.
func HandleAuctionByID(svc AuctionListingService, bids BidPlacer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseAuctionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			auction, err := svc.GetAuction(r.Context(), id)
			if err != nil {
				writeAuctionError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toAuctionResponse(auction))
		case "bids":
			switch r.Method {
			case http.MethodGet:
				handleListBids(w, r, svc, id)
			case http.MethodPost:
				handlePlaceBid(w, r, bids, id)
			default:
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			}
		case "publish":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			auction, err := svc.PublishAuction(r.Context(), id)
			if err != nil {
				writeAuctionError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toAuctionResponse(auction))
		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			auction, err := svc.CancelAuction(r.Context(), id)
			if err != nil {
				writeAuctionError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toAuctionResponse(auction))
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleListBids(w http.ResponseWriter, r *http.Request, svc AuctionListingService, auctionID string) {
	bids, err := svc.ListBids(r.Context(), auctionID)
	if err != nil {
		writeAuctionError(w, err)
		return
	}
	resp := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, toBidResponse(b))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// parseAuctionPath splits /auctions/{id}[/{action}] into its parts.
func parseAuctionPath(path string) (id, action string, ok bool) {
	rest, found := strings.CutPrefix(path, "/auctions/")
	if !found || rest == "" {
		return "", "", false
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0], "", parts[0] != ""
	case 2:
		return parts[0], parts[1], parts[0] != "" && parts[1] != ""
	}
	return "", "", false
}

func writeAuctionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, codeTitleRequired, err.Error())
	case errors.Is(err, domain.ErrSellerRequired):
		writeError(w, http.StatusBadRequest, codeSellerRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, codeInvalidSchedule, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, codeInvalidState, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrAuctionNotFound):
		writeError(w, http.StatusNotFound, codeAuctionNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrStaleVersion):
		writeError(w, http.StatusConflict, codeStaleVersion, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type createAuctionRequest struct {
	SellerID      string `json:"seller_id"`
	Title         string `json:"title"`
	StartingPrice string `json:"starting_price"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Draft         bool   `json:"draft,omitempty"`
}

func (r createAuctionRequest) toInput() (app.CreateAuctionInput, error) {
	price := decimal.Zero
	if r.StartingPrice != "" {
		parsed, err := decimal.NewFromString(r.StartingPrice)
		if err != nil {
			return app.CreateAuctionInput{}, errors.New("invalid starting_price")
		}
		price = parsed
	}

	startTime, err := time.Parse(time.RFC3339, r.StartTime)
	if err != nil {
		return app.CreateAuctionInput{}, errors.New("invalid start_time format")
	}
	endTime, err := time.Parse(time.RFC3339, r.EndTime)
	if err != nil {
		return app.CreateAuctionInput{}, errors.New("invalid end_time format")
	}

	return app.CreateAuctionInput{
		SellerID:      r.SellerID,
		Title:         r.Title,
		StartingPrice: price,
		StartTime:     startTime,
		EndTime:       endTime,
		Draft:         r.Draft,
	}, nil
}

type auctionResponse struct {
	ID              string    `json:"id"`
	SellerID        string    `json:"seller_id"`
	Title           string    `json:"title"`
	State           string    `json:"state"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	CurrentBid      string    `json:"current_bid"`
	HighestBidderID string    `json:"highest_bidder_id,omitempty"`
	BidCount        int       `json:"bid_count"`
	Version         int64     `json:"version"`
}

func toAuctionResponse(a domain.Auction) auctionResponse {
	return auctionResponse{
		ID:              a.ID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		State:           string(a.State),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		CurrentBid:      a.CurrentBid.String(),
		HighestBidderID: a.HighestBidderID,
		BidCount:        a.BidCount,
		Version:         a.Version,
	}
}

type bidResponse struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    string    `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

func toBidResponse(b domain.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.String(),
		PlacedAt:  b.PlacedAt,
	}
}
