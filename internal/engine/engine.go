package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"PredictLedger/internal/event"
	"PredictLedger/internal/ledger"
	"PredictLedger/internal/market"
	fpmath "PredictLedger/internal/math"
	"PredictLedger/internal/observability"
)

// Protocol constants. Percentages apply to the reward pool at distribution
// time; the fee applies to every public stake.
const (
	PlatformFeePercent   = 1
	CreatorSharePercent  = 10
	ProtocolSharePercent = 10
	StakerSharePercent   = 80

	// LivenessWindow is how long a pending proposal may be challenged.
	LivenessWindow = 24 * time.Hour

	// ChallengePeriod is the uniform buffer after the scheduled resolution
	// time before payouts may finalize.
	ChallengePeriod = 72 * time.Hour
)

// Bond minimums, in ValueConfig scale.
var (
	MinProposalBond  = 100 * fpmath.ValueConfig.Scale
	MinChallengeBond = 100 * fpmath.ValueConfig.Scale
)

// Engine is the serialized entry point for every state-mutating operation.
// Each operation takes the target market's lock for its whole duration,
// external transfers included, so no nested re-entry can observe partial
// state. Discipline inside every operation: checks, then effects, then
// interactions.
type Engine struct {
	registry  *market.Registry
	balances  *ledger.BalanceLedger
	validator *market.InvariantValidator

	clock    Clock
	transfer Transferor
	emitter  Emitter
	metrics  *observability.Metrics
	log      zerolog.Logger

	// resolver is the privileged identity for challenged-proposal settlement
	// and the account credited with the protocol share.
	resolver uuid.UUID

	sequence atomic.Int64
}

func NewEngine(
	resolver uuid.UUID,
	clock Clock,
	transfer Transferor,
	emitter Emitter,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		registry:  market.NewRegistry(),
		balances:  ledger.NewBalanceLedger(),
		validator: market.NewInvariantValidator(),
		clock:     clock,
		transfer:  transfer,
		emitter:   emitter,
		metrics:   metrics,
		log:       log,
		resolver:  resolver,
	}
}

// Resolver returns the privileged resolver / protocol account.
func (e *Engine) Resolver() uuid.UUID { return e.resolver }

// CreateMarket opens a new market. The creator's seed deposit funds both
// sides equally at 1:1 pricing, establishing a 50/50 price before any public
// stake; each seed half is a claimable stake owned by the creator. The seed
// pays no platform fee.
func (e *Engine) CreateMarket(
	caller uuid.UUID,
	question, category string,
	endTime, resolutionTime time.Time,
	seed int64,
) (int64, error) {
	start := time.Now()

	now := e.clock.Now()
	if !endTime.After(now) {
		return 0, e.reject("create_market", fmt.Errorf("%w: end time %s not in the future", ErrInvalidTiming, endTime))
	}
	if resolutionTime.Before(endTime) {
		return 0, e.reject("create_market", fmt.Errorf("%w: resolution time %s before end time", ErrInvalidTiming, resolutionTime))
	}
	if seed < 2 {
		return 0, e.reject("create_market", fmt.Errorf("%w: seed %d cannot fund both sides", ErrInsufficientValue, seed))
	}

	m := e.registry.Create(market.MarketCore{
		Question:       question,
		Category:       category,
		EndTime:        endTime,
		ResolutionTime: resolutionTime,
		Creator:        caller,
	})

	m.Lock()
	defer m.Unlock()

	// Integer halving: the NO side absorbs the odd remainder so the full
	// seed stays accounted for.
	yesHalf := seed / 2
	noHalf := seed - yesHalf
	e.appendStakeLocked(m, market.OutcomeYes, caller, yesHalf)
	e.appendStakeLocked(m, market.OutcomeNo, caller, noHalf)

	e.postCheckLocked(m)

	e.emit(&event.MarketCreated{
		Market:         m.ID,
		Question:       question,
		Category:       category,
		Creator:        caller,
		Seed:           seed,
		EndTime:        endTime,
		ResolutionTime: resolutionTime,
	})

	if e.metrics != nil {
		e.metrics.MarketsCreated.Inc()
	}
	e.applied("create_market", start)
	e.log.Info().
		Int64("market", m.ID).
		Str("question", question).
		Int64("seed", seed).
		Msg("market created")

	return m.ID, nil
}

// PlaceStake stakes attached value on one side of an open market. A 1% fee
// accrues to the reward pool; the net amount buys probability-weighted units
// and is the principal returned at claim time. Returns the stake's permanent
// index in the (market, outcome) arena.
func (e *Engine) PlaceStake(caller uuid.UUID, marketID int64, outcome market.Outcome, value int64) (int64, error) {
	start := time.Now()

	m, ok := e.registry.Get(marketID)
	if !ok {
		return 0, e.reject("place_stake", fmt.Errorf("%w: id %d", ErrMarketNotFound, marketID))
	}

	m.Lock()
	defer m.Unlock()

	index, err := e.placeStakeLocked(m, caller, outcome, value)
	if err != nil {
		return 0, e.reject("place_stake", err)
	}

	e.applied("place_stake", start)
	return index, nil
}

// placeStakeLocked is the shared stake path for PlaceStake and Restake.
// Caller holds the market lock.
func (e *Engine) placeStakeLocked(m *market.Market, caller uuid.UUID, outcome market.Outcome, value int64) (int64, error) {
	now := e.clock.Now()
	if !now.Before(m.Core.EndTime) {
		return 0, fmt.Errorf("%w: market %d ended at %s", ErrInvalidTiming, m.ID, m.Core.EndTime)
	}
	if !outcome.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: stake value %d", ErrInsufficientValue, value)
	}

	fee := fpmath.PercentOf(value, PlatformFeePercent)
	net := value - fee

	m.State.RewardPool += fee
	index := e.appendStakeLocked(m, outcome, caller, net)

	e.postCheckLocked(m)

	e.emit(&event.StakePlaced{
		Market:     m.ID,
		Outcome:    outcome.String(),
		StakeIndex: index,
		Staker:     caller,
		GrossValue: value,
		Fee:        fee,
		NetAmount:  net,
		Units:      units(m, outcome, index),
	})

	if e.metrics != nil {
		e.metrics.StakeVolume.WithLabelValues(outcome.String()).Add(float64(value))
	}
	e.log.Debug().
		Int64("market", m.ID).
		Str("outcome", outcome.String()).
		Int64("value", value).
		Int64("index", index).
		Msg("stake placed")

	return index, nil
}

// appendStakeLocked prices amount against the current pool and records the
// stake. Units are fixed here and never recomputed.
func (e *Engine) appendStakeLocked(m *market.Market, outcome market.Outcome, staker uuid.UUID, amount int64) int64 {
	u := fpmath.ComputeUnits(amount, m.SideStake(outcome), m.SideStake(outcome.Opposite()))
	return m.AppendStake(outcome, market.Stake{
		Amount: amount,
		Units:  u,
		Staker: staker,
	})
}

func units(m *market.Market, outcome market.Outcome, index int64) int64 {
	s, _ := m.GetStake(outcome, index)
	return s.Units
}

// Withdraw debits the caller's credited balance, then performs the outbound
// transfer. The debit happens before the interaction; if the transfer
// reports failure the debit is rolled back and the operation fails as a
// whole.
func (e *Engine) Withdraw(caller uuid.UUID, amount int64) error {
	start := time.Now()

	if amount <= 0 {
		return e.reject("withdraw", fmt.Errorf("%w: withdrawal amount %d", ErrInsufficientValue, amount))
	}

	if err := e.balances.Debit(caller, amount); err != nil {
		return e.reject("withdraw", err)
	}

	if err := e.transfer.Transfer(caller, amount); err != nil {
		// Roll the debit back; ledger debit and transfer are all-or-nothing.
		if cerr := e.balances.Credit(caller, amount); cerr != nil {
			panic(fmt.Sprintf("FATAL: withdrawal rollback failed for %s: %v", caller, cerr))
		}
		if e.metrics != nil {
			e.metrics.TransferFailures.Inc()
		}
		return e.reject("withdraw", fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}

	e.emit(&event.WithdrawalCompleted{Account: caller, Amount: amount})

	e.applied("withdraw", start)
	e.log.Info().
		Str("account", caller.String()).
		Int64("amount", amount).
		Msg("withdrawal completed")

	return nil
}

// === Read-side snapshots (used by the query service) ===

// MarketCount returns the number of registered markets.
func (e *Engine) MarketCount() int64 { return e.registry.Count() }

// SnapshotMarket returns copies of a market's core and state.
func (e *Engine) SnapshotMarket(id int64) (market.MarketCore, market.MarketState, bool) {
	m, ok := e.registry.Get(id)
	if !ok {
		return market.MarketCore{}, market.MarketState{}, false
	}
	m.Lock()
	defer m.Unlock()
	return m.Core, m.State, true
}

// SnapshotProposal returns a copy of a market's proposal, if any.
func (e *Engine) SnapshotProposal(id int64) (market.Proposal, bool) {
	m, ok := e.registry.Get(id)
	if !ok || m == nil {
		return market.Proposal{}, false
	}
	m.Lock()
	defer m.Unlock()
	if m.Proposal == nil {
		return market.Proposal{}, false
	}
	return *m.Proposal, true
}

// SnapshotStakes returns a copy of one side's stake arena.
func (e *Engine) SnapshotStakes(id int64, outcome market.Outcome) ([]market.Stake, bool) {
	m, ok := e.registry.Get(id)
	if !ok || !outcome.Valid() {
		return nil, false
	}
	m.Lock()
	defer m.Unlock()
	return m.Stakes(outcome), true
}

// AccountBalance returns the credited balance for an account.
func (e *Engine) AccountBalance(account uuid.UUID) int64 {
	return e.balances.Balance(account)
}

// === Internal plumbing ===

// emit assigns the next global sequence and hands the envelope to the sink.
// Sequences are atomic because operations on distinct markets (and
// withdrawals) run concurrently; per-market ordering follows the market lock.
func (e *Engine) emit(payload event.Event) {
	env := event.Envelope{
		Sequence:  e.sequence.Add(1),
		Type:      payload.EventType(),
		MarketID:  payload.MarketID(),
		Timestamp: e.clock.Now(),
		Payload:   payload,
	}
	e.emitter.Emit(env)

	if e.metrics != nil {
		e.metrics.EngineSequence.Set(float64(env.Sequence))
	}
}

// postCheckLocked validates the affected market's invariants after effects.
// A violation here is corrupted state, not a caller error.
func (e *Engine) postCheckLocked(m *market.Market) {
	if err := e.validator.Validate(m); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}
}

func (e *Engine) applied(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
	}
	return err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTiming):
		return "invalid_timing"
	case errors.Is(err, ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, ErrInsufficientValue):
		return "insufficient_value"
	case errors.Is(err, ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, ErrStakeNotFound):
		return "stake_not_found"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrProposalPending):
		return "proposal_pending"
	case errors.Is(err, ErrNoProposal):
		return "no_proposal"
	case errors.Is(err, ErrChallenged):
		return "challenged"
	case errors.Is(err, ErrNotChallenged):
		return "not_challenged"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrSameMarket):
		return "same_market"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	default:
		return "other"
	}
}
