package ledger_test

import (
	"PredictLedger/internal/ledger"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestBalanceLedger_InitialBalanceZero(t *testing.T) {
	bl := ledger.NewBalanceLedger()
	if b := bl.Balance(uuid.New()); b != 0 {
		t.Errorf("initial balance should be 0, got %d", b)
	}
}

func TestBalanceLedger_CreditDebit(t *testing.T) {
	bl := ledger.NewBalanceLedger()
	account := uuid.New()

	if err := bl.Credit(account, 1_000_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if b := bl.Balance(account); b != 1_000_000 {
		t.Errorf("after credit: got %d, want 1_000_000", b)
	}

	if err := bl.Debit(account, 400_000); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if b := bl.Balance(account); b != 600_000 {
		t.Errorf("after debit: got %d, want 600_000", b)
	}
}

func TestBalanceLedger_DebitInsufficient(t *testing.T) {
	bl := ledger.NewBalanceLedger()
	account := uuid.New()
	bl.Credit(account, 100)

	err := bl.Debit(account, 101)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if b := bl.Balance(account); b != 100 {
		t.Errorf("failed debit must not change balance: got %d", b)
	}
}

func TestBalanceLedger_RejectsNonPositiveAmounts(t *testing.T) {
	bl := ledger.NewBalanceLedger()
	account := uuid.New()

	if err := bl.Credit(account, 0); err == nil {
		t.Error("zero credit should fail")
	}
	if err := bl.Credit(account, -5); err == nil {
		t.Error("negative credit should fail")
	}
	if err := bl.Debit(account, 0); err == nil {
		t.Error("zero debit should fail")
	}
}

func TestBalanceLedger_TotalCredited(t *testing.T) {
	bl := ledger.NewBalanceLedger()
	bl.Credit(uuid.New(), 300)
	bl.Credit(uuid.New(), 700)

	if total := bl.TotalCredited(); total != 1_000 {
		t.Errorf("total credited: got %d, want 1_000", total)
	}
}

func TestBalanceLedger_SnapshotIsolated(t *testing.T) {
	bl := ledger.NewBalanceLedger()
	account := uuid.New()
	bl.Credit(account, 999)

	snap := bl.Snapshot()
	for k := range snap {
		snap[k] = 0
	}

	if b := bl.Balance(account); b != 999 {
		t.Error("ledger balance should not be affected by snapshot mutation")
	}
}
