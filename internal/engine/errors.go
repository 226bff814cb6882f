package engine

import (
	"errors"

	"PredictLedger/internal/ledger"
)

// Every operation fails atomically with one of these kinds; callers match
// with errors.Is and re-issue after correcting the violated precondition.
// Nothing is retried internally and no precondition violation is ignored.
var (
	// ErrInvalidTiming: market not ended / already ended / liveness not
	// expired / challenge period not over.
	ErrInvalidTiming = errors.New("invalid timing")

	// ErrInvalidOutcome: outcome is not YES or NO.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrInsufficientValue: stake, seed, or bond below the required minimum.
	ErrInsufficientValue = errors.New("insufficient value")

	// ErrMarketNotFound: market id >= count.
	ErrMarketNotFound = errors.New("market not found")

	// ErrStakeNotFound: stake index outside the (market, outcome) arena.
	ErrStakeNotFound = errors.New("stake not found")

	// ErrAlreadyResolved: double resolution or finalization.
	ErrAlreadyResolved = errors.New("already resolved")

	// ErrProposalPending: a live proposal already exists for the market.
	ErrProposalPending = errors.New("proposal pending")

	// ErrNoProposal: challenge/finalize/resolve with no proposal recorded.
	ErrNoProposal = errors.New("no proposal")

	// ErrChallenged: finalize on a challenged proposal; only the privileged
	// resolver can settle it.
	ErrChallenged = errors.New("proposal challenged")

	// ErrNotChallenged: resolver settlement on an unchallenged proposal;
	// finalize is the correct path.
	ErrNotChallenged = errors.New("proposal not challenged")

	// ErrNotOwner: caller is not the stake's recorded staker, or not the
	// privileged resolver.
	ErrNotOwner = errors.New("not owner")

	// ErrAlreadyClaimed: double claim or restake of the same stake.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrSameMarket: restake source and destination are the same market.
	ErrSameMarket = errors.New("same market")

	// ErrTransferFailed: outbound value movement failed; the associated
	// debit has been rolled back.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInsufficientBalance: withdrawal exceeds the credited balance.
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
)
