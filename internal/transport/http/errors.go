package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeInvalidSchedule      = "invalid_schedule"
	codeInvalidAmount        = "invalid_amount"
	codeInvalidState         = "invalid_state"
	codeTitleRequired        = "title_required"
	codeSellerRequired       = "seller_required"
	codeBidderRequired       = "bidder_required"
	codeAuctionNotFound      = "auction_not_found"
	codeAuctionNotActive     = "auction_not_active"
	codeAmountTooLow         = "amount_too_low"
	codeAlreadyHighestBidder = "already_highest_bidder"
	codeStaleVersion         = "stale_version"
	codeInvalidTransition    = "invalid_transition"
	codeStoreUnreachable     = "store_unreachable"
	codePassInProgress       = "pass_in_progress"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}
