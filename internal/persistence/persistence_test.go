package persistence_test

import (
	"context"
	"testing"
	"time"

	"PredictLedger/internal/event"
	"PredictLedger/internal/persistence"
	"PredictLedger/internal/testutil"
)

func TestRowFromEnvelope(t *testing.T) {
	marketID := int64(3)
	env := event.Envelope{
		Sequence:  42,
		Type:      event.EventTypeMarketResolved,
		MarketID:  &marketID,
		Timestamp: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Payload:   &event.MarketResolved{Market: 3, Outcome: "YES"},
	}

	row := persistence.RowFromEnvelope(env)
	if row.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", row.Sequence)
	}
	if row.EventType != "MarketResolved" {
		t.Errorf("event type = %q, want MarketResolved", row.EventType)
	}
	if row.MarketID == nil || *row.MarketID != 3 {
		t.Errorf("market id = %v, want 3", row.MarketID)
	}
	if len(row.Payload) == 0 {
		t.Error("payload not marshalled")
	}
}

func TestRowFromEnvelopeAccountScoped(t *testing.T) {
	env := event.Envelope{
		Sequence:  1,
		Type:      event.EventTypeWithdrawalCompleted,
		Timestamp: time.Now(),
		Payload:   &event.WithdrawalCompleted{Amount: 500},
	}
	row := persistence.RowFromEnvelope(env)
	if row.MarketID != nil {
		t.Errorf("account-scoped event must carry a NULL market id, got %v", *row.MarketID)
	}
}

func TestEventLogWriteIsIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	marketID := int64(0)
	batch := []persistence.EventRow{
		{
			Sequence:  1,
			EventType: "MarketCreated",
			MarketID:  &marketID,
			Payload:   persistence.MarshalPayload(&event.MarketCreated{Market: 0, Question: "q"}),
			Timestamp: time.Now().UTC(),
		},
		{
			Sequence:  2,
			EventType: "StakePlaced",
			MarketID:  &marketID,
			Payload:   persistence.MarshalPayload(&event.StakePlaced{Market: 0, Outcome: "YES"}),
			Timestamp: time.Now().UTC(),
		},
	}

	writer := persistence.NewEventLogWriter(db)
	writeBatch := func() {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		if err := writer.WriteEventBatch(ctx, batch, tx); err != nil {
			tx.Rollback()
			t.Fatalf("write batch: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	// ON CONFLICT DO NOTHING: re-delivering the same sequences is a no-op.
	writeBatch()
	writeBatch()

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_log.events`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("event count = %d, want 2", count)
	}
}
