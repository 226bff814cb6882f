package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// TransferOrder is the durable payout instruction handed to the settlement
// consumer.
type TransferOrder struct {
	Account   uuid.UUID `json:"account"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSTransferor hands withdrawal payouts to the settlement system by
// publishing transfer orders to a JetStream work queue. The publish is
// synchronous: an error here means the withdrawal must roll back, so the
// order is durably queued before the engine commits the debit.
type NATSTransferor struct {
	js      jetstream.JetStream
	timeout time.Duration
}

func NewNATSTransferor(js jetstream.JetStream) *NATSTransferor {
	return &NATSTransferor{js: js, timeout: 5 * time.Second}
}

func (t *NATSTransferor) Transfer(account uuid.UUID, amount int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	data, err := json.Marshal(TransferOrder{
		Account:   account,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal transfer order: %w", err)
	}

	subject := fmt.Sprintf("predict.ledger.transfers.%s", account)
	if _, err := t.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("queue transfer order: %w", err)
	}
	return nil
}

// EnsureTransferStream creates the settlement work queue. WorkQueuePolicy
// keeps each order until exactly one settlement consumer acks it.
func EnsureTransferStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PREDICT_LEDGER_TRANSFERS",
		Subjects:  []string{"predict.ledger.transfers.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create transfer stream: %w", err)
	}
	log.Println("INFO: ensured transfer stream PREDICT_LEDGER_TRANSFERS")
	return nil
}
