package engine

import (
	"time"

	"github.com/google/uuid"

	"PredictLedger/internal/event"
)

// Clock reads the current time for all lifecycle guards. Timing thresholds
// are evaluated lazily at call time; the engine never schedules or polls.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Transferor performs the outbound value movement for withdrawals. Failure
// is reported explicitly through the returned error, never silently; the
// engine rolls the ledger debit back when a transfer fails.
type Transferor interface {
	Transfer(account uuid.UUID, amount int64) error
}

// Emitter is the best-effort event sink for off-system indexers. Emission
// happens after all state effects are applied and must not fail the
// operation.
type Emitter interface {
	Emit(env event.Envelope)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(event.Envelope) {}
