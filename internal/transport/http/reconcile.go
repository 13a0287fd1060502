package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/app"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

// ReconcileTrigger is the minimal interface the manual reconcile endpoint needs.
type ReconcileTrigger interface {
	RunOnce(ctx context.Context) (app.PassResult, error)
}

type reconcileResponse struct {
	Activated  int `json:"activated"`
	Ended      int `json:"ended"`
	EndingSoon int `json:"ending_soon"`
}

// HandleReconcile triggers a single reconciliation pass on demand. At most
// one pass runs at a time; an overlapping request gets a 409.
func HandleReconcile(trigger ReconcileTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		result, err := trigger.RunOnce(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, app.ErrPassInProgress):
				writeError(w, http.StatusConflict, codePassInProgress, err.Error())
			case errors.Is(err, domain.ErrStoreUnreachable):
				writeError(w, http.StatusServiceUnavailable, codeStoreUnreachable, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reconcileResponse{
			Activated:  result.Activated,
			Ended:      result.Ended,
			EndingSoon: result.EndingSoon,
		})
	}
}
