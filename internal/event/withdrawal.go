package event

import "github.com/google/uuid"

// WithdrawalCompleted is emitted only after the outbound transfer succeeded.
// Failed withdrawals roll back and emit nothing.
type WithdrawalCompleted struct {
	Account uuid.UUID `json:"account"`
	Amount  int64     `json:"amount"`
}

func (e *WithdrawalCompleted) EventType() EventType { return EventTypeWithdrawalCompleted }
func (e *WithdrawalCompleted) MarketID() *int64     { return nil }
