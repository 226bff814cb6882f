package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrInsufficientBalance is returned when a debit exceeds the credited amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceLedger tracks per-account owed amounts. It is the only path through
// which value reaches an account: resolution and claims credit it, and an
// explicit withdrawal is the only debit.
//
// All methods are safe for concurrent use; the ledger carries its own mutex
// so balance checks and mutations are atomic even when two operations touch
// the same account.
type BalanceLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
}

func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{
		balances: make(map[uuid.UUID]int64),
	}
}

// Credit adds amount to an account. Amount must be positive.
func (bl *BalanceLedger) Credit(account uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive: %d", amount)
	}

	bl.mu.Lock()
	defer bl.mu.Unlock()

	bl.balances[account] += amount
	return nil
}

// Debit removes amount from an account. The check and the mutation happen
// under one lock so a concurrent debit cannot drive the balance negative.
func (bl *BalanceLedger) Debit(account uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive: %d", amount)
	}

	bl.mu.Lock()
	defer bl.mu.Unlock()

	have := bl.balances[account]
	if have < amount {
		return fmt.Errorf("%w: have=%d, need=%d", ErrInsufficientBalance, have, amount)
	}

	bl.balances[account] = have - amount
	return nil
}

// Balance returns the current credited amount for an account.
func (bl *BalanceLedger) Balance(account uuid.UUID) int64 {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	return bl.balances[account]
}

// ValidateNonNegative checks an account balance is >= 0. Debit makes a
// negative balance unreachable; this exists as a post-operation invariant
// check.
func (bl *BalanceLedger) ValidateNonNegative(account uuid.UUID) error {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	if b := bl.balances[account]; b < 0 {
		return fmt.Errorf("account %s has negative balance: %d", account.String(), b)
	}
	return nil
}

// TotalCredited sums all account balances (outstanding liabilities).
func (bl *BalanceLedger) TotalCredited() int64 {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	var total int64
	for _, b := range bl.balances {
		total += b
	}
	return total
}

// Snapshot returns a copy of all balances (for queries and projections).
func (bl *BalanceLedger) Snapshot() map[uuid.UUID]int64 {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	snapshot := make(map[uuid.UUID]int64, len(bl.balances))
	for k, v := range bl.balances {
		snapshot[k] = v
	}
	return snapshot
}
