package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/payrail/payrail/internal/eventlog"
	"github.com/payrail/payrail/pkg/logger"
)

const (
	// TopicPayoutEvents carries committed payout events.
	TopicPayoutEvents = "events.payout"

	// TopicTransactionEvents carries committed ledger transaction events.
	TopicTransactionEvents = "events.transaction"

	// publishTimeout bounds each broadcast attempt.
	publishTimeout = 2 * time.Second
)

// Publisher broadcasts committed events over Redis Pub/Sub. Strictly
// best-effort and non-authoritative: a failed publish is logged and dropped,
// never surfaced to the caller. Clients that miss a broadcast reconcile via
// GET /api/events?since=.
type Publisher struct {
	client *redis.Client
	logger *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(client *redis.Client, log *logger.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: log.WithField("component", "publisher"),
	}
}

// wireEvent is the broadcast envelope.
type wireEvent struct {
	EventID        string                 `json:"event_id"`
	SequenceNumber int64                  `json:"sequence_number"`
	AggregateType  string                 `json:"aggregate_type"`
	AggregateID    string                 `json:"aggregate_id"`
	EventType      string                 `json:"event_type"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// PublishPayoutEvent broadcasts a payout event on events.payout.
func (p *Publisher) PublishPayoutEvent(ctx context.Context, event *eventlog.Event) {
	p.publish(ctx, TopicPayoutEvents, event)
}

// PublishTransactionEvent broadcasts a ledger transaction event on
// events.transaction.
func (p *Publisher) PublishTransactionEvent(ctx context.Context, event *eventlog.Event) {
	p.publish(ctx, TopicTransactionEvents, event)
}

func (p *Publisher) publish(ctx context.Context, topic string, event *eventlog.Event) {
	if p.client == nil || event == nil {
		return
	}

	body, err := json.Marshal(wireEvent{
		EventID:        event.EventID,
		SequenceNumber: event.SequenceNumber,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        event.Payload,
		CreatedAt:      event.CreatedAt,
	})
	if err != nil {
		p.logger.Error("failed to marshal event for broadcast", "event_id", event.EventID, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.client.Publish(pubCtx, topic, body).Err(); err != nil {
		p.logger.Warn("event broadcast dropped", "topic", topic, "event_id", event.EventID, "error", err)
	}
}
