package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"PredictLedger/internal/event"
)

// EventLogWriter appends engine events to Postgres using multi-row INSERT.
// Writes are idempotent on sequence, so replays after a crash are safe.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence  int64
	EventType string
	MarketID  *int64
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowFromEnvelope converts an emitted envelope into its persisted form.
func RowFromEnvelope(env event.Envelope) EventRow {
	return EventRow{
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		MarketID:  env.MarketID,
		Payload:   MarshalPayload(env.Payload),
		Timestamp: env.Timestamp,
	}
}

// WriteEventBatch writes a batch of events to event_log.events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow, tx *sql.Tx) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, market_id, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.Sequence, e.EventType, e.MarketID, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload JSON-encodes an event payload for storage.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
