package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"PredictLedger/internal/event"
	"PredictLedger/internal/observability"
)

// OutboundPublisher publishes engine events to NATS for off-system indexers.
// Subjects follow the pattern: predict.ledger.events.{event_type}.{market_id}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
	metrics   *observability.Metrics
}

// wireEvent is the outbound JSON shape.
type wireEvent struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	MarketID  *int64      `json:"market_id,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan event.Envelope, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the outbound publisher loop. Publish failures are logged and
// dropped; downstream consumers can query the event log directly.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, env); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", env.Sequence, err)
				if op.metrics != nil {
					op.metrics.PublishErrors.Inc()
				}
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(wireEvent{
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		MarketID:  env.MarketID,
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("predict.ledger.events.%s", env.Type)
	if env.MarketID != nil {
		subject = fmt.Sprintf("%s.%d", subject, *env.MarketID)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PREDICT_LEDGER_EVENTS",
		Subjects:  []string{"predict.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream PREDICT_LEDGER_EVENTS")
	return nil
}
