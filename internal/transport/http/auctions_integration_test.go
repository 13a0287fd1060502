package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/app"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/clock"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/notify"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/storage/postgres"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/testutil"
)

func TestPlaceBid_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	repo := postgres.NewAuctionRepository(pool)
	now := time.Now().UTC()
	bridge := notify.NewBridge(nil, nil)
	bidSvc := app.NewBidService(repo, clock.NewFixed(now), bridge)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	auctionID := testutil.InsertAuction(t, ctx, pool, domain.Auction{
		State:      domain.AuctionStateActive,
		StartTime:  now.Add(-time.Hour),
		EndTime:    now.Add(time.Hour),
		CurrentBid: decimal.NewFromInt(100),
	})

	body := []byte(`{"bidder_id":"bidder-1","amount":"100"}`)
	req := httptest.NewRequest(http.MethodPost, "/auctions/"+auctionID+"/bids", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	HandleAuctionByID(&stubAuctionService{}, bidSvc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (body %q)", rec.Code, rec.Body.String())
	}

	var resp bidResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AuctionID != auctionID || resp.Amount != "100" {
		t.Fatalf("unexpected bid response %+v", resp)
	}

	var count int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND bidder_id = $2`,
		auctionID, "bidder-1",
	).Scan(&count); err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 bid, got %d", count)
	}

	// A repeat of the same amount is below current+increment and the same
	// bidder cannot outbid themselves; both rules map to conflicts.
	req2 := httptest.NewRequest(http.MethodPost, "/auctions/"+auctionID+"/bids", bytes.NewBuffer(body))
	rec2 := httptest.NewRecorder()
	HandleAuctionByID(&stubAuctionService{}, bidSvc).ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected status 409 on self outbid, got %d", rec2.Code)
	}
}

func TestAuctionLifecycle_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	repo := postgres.NewAuctionRepository(pool)
	manual := clock.NewManual(time.Now().UTC())
	bridge := notify.NewBridge(nil, nil)
	svc := app.NewAuctionService(repo, manual, bridge)
	reconciler := app.NewReconciler(repo, manual, bridge, nil)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	now := manual.Now()
	createBody := []byte(`{"seller_id":"seller-1","title":"Vintage camera","starting_price":"50","start_time":"` +
		now.Add(time.Minute).Format(time.RFC3339) + `","end_time":"` +
		now.Add(2*time.Hour).Format(time.RFC3339) + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auctions", bytes.NewBuffer(createBody))
	rec := httptest.NewRecorder()

	HandleAuctions(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (body %q)", rec.Code, rec.Body.String())
	}
	var created auctionResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.State != string(domain.AuctionStateScheduled) {
		t.Fatalf("expected scheduled, got %s", created.State)
	}

	// Past the start time, a manual reconcile pass promotes it.
	manual.Advance(2 * time.Minute)
	recReq := httptest.NewRequest(http.MethodPost, "/admin/reconcile", nil)
	recRec := httptest.NewRecorder()
	HandleReconcile(reconciler).ServeHTTP(recRec, recReq)

	if recRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %q)", recRec.Code, recRec.Body.String())
	}
	var pass reconcileResponse
	if err := json.NewDecoder(recRec.Body).Decode(&pass); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if pass.Activated != 1 {
		t.Fatalf("expected 1 activation, got %+v", pass)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/auctions/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	HandleAuctionByID(svc, nil).ServeHTTP(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", getRec.Code)
	}
	var fetched auctionResponse
	if err := json.NewDecoder(getRec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if fetched.State != string(domain.AuctionStateActive) {
		t.Fatalf("expected active after reconcile, got %s", fetched.State)
	}
	if fetched.Version != created.Version+1 {
		t.Fatalf("expected version bump, got %d then %d", created.Version, fetched.Version)
	}
}
