package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

// NATSSink publishes lifecycle events as JSON on per-kind subjects, e.g.
// "auction.lifecycle.price_changed". Publishing is fire-and-forget; the
// client buffers writes, so delivery never blocks a reconciliation pass or
// a bid placement.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSSink(conn *nats.Conn, subjectPrefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: subjectPrefix}
}

type natsEvent struct {
	AuctionID  string    `json:"auction_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Amount     string    `json:"amount,omitempty"`
	BidderID   string    `json:"bidder_id,omitempty"`
	EndTime    time.Time `json:"end_time"`
}

func (s *NATSSink) Deliver(_ context.Context, ev domain.LifecycleEvent) error {
	payload := natsEvent{
		AuctionID:  ev.AuctionID,
		Kind:       string(ev.Kind),
		OccurredAt: ev.OccurredAt,
		BidderID:   ev.BidderID,
		EndTime:    ev.EndTime,
	}
	if !ev.Amount.IsZero() || ev.Kind == domain.EventPriceChanged || ev.Kind == domain.EventAuctionEnded {
		payload.Amount = ev.Amount.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}
	if err := s.conn.Publish(s.prefix+string(ev.Kind), data); err != nil {
		return fmt.Errorf("publish lifecycle event: %w", err)
	}
	return nil
}
