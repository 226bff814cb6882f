package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"PredictLedger/internal/event"
	"PredictLedger/internal/market"
)

// Market lifecycle: Open → Ended → ProposalPending → {Unchallenged |
// Challenged} → Resolved. Open→Ended is automatic at end time; every other
// transition is one of the operations below. Bonds make dishonesty costly:
// a wrong proposer forfeits to the stakers' pool, a wrong challenger
// forfeits to the proposer.

// ProposeOutcome opens a bonded proposal for an ended market and starts the
// liveness window. A second proposal while one is live is rejected; the
// pending one must be challenged or finalized first.
func (e *Engine) ProposeOutcome(caller uuid.UUID, marketID int64, outcome market.Outcome, bond int64) error {
	start := time.Now()

	m, ok := e.registry.Get(marketID)
	if !ok {
		return e.reject("propose_outcome", fmt.Errorf("%w: id %d", ErrMarketNotFound, marketID))
	}

	m.Lock()
	defer m.Unlock()

	now := e.clock.Now()
	if now.Before(m.Core.EndTime) {
		return e.reject("propose_outcome", fmt.Errorf("%w: market %d not ended until %s", ErrInvalidTiming, m.ID, m.Core.EndTime))
	}
	if m.State.Resolved {
		return e.reject("propose_outcome", fmt.Errorf("%w: market %d", ErrAlreadyResolved, m.ID))
	}
	if m.Proposal != nil && !m.Proposal.Resolved {
		return e.reject("propose_outcome", fmt.Errorf("%w: market %d", ErrProposalPending, m.ID))
	}
	if !outcome.Valid() {
		return e.reject("propose_outcome", fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome))
	}
	if bond < MinProposalBond {
		return e.reject("propose_outcome", fmt.Errorf("%w: bond %d below minimum %d", ErrInsufficientValue, bond, MinProposalBond))
	}

	deadline := now.Add(LivenessWindow)
	m.Proposal = &market.Proposal{
		Outcome:          outcome,
		Proposer:         caller,
		Bond:             bond,
		LivenessDeadline: deadline,
	}

	e.emit(&event.OutcomeProposed{
		Market:           m.ID,
		Outcome:          outcome.String(),
		Proposer:         caller,
		Bond:             bond,
		LivenessDeadline: deadline,
	})

	e.applied("propose_outcome", start)
	e.log.Info().
		Int64("market", m.ID).
		Str("outcome", outcome.String()).
		Int64("bond", bond).
		Time("liveness_deadline", deadline).
		Msg("outcome proposed")

	return nil
}

// ChallengeProposal bonds against a live proposal inside its liveness
// window. Challenge stake accumulates across challenges; the most recent
// challenger is the one made whole if the proposal turns out wrong.
func (e *Engine) ChallengeProposal(caller uuid.UUID, marketID int64, bond int64) error {
	start := time.Now()

	m, ok := e.registry.Get(marketID)
	if !ok {
		return e.reject("challenge_proposal", fmt.Errorf("%w: id %d", ErrMarketNotFound, marketID))
	}

	m.Lock()
	defer m.Unlock()

	if m.Proposal == nil {
		return e.reject("challenge_proposal", fmt.Errorf("%w: market %d", ErrNoProposal, m.ID))
	}
	if m.Proposal.Resolved || m.State.Resolved {
		return e.reject("challenge_proposal", fmt.Errorf("%w: market %d", ErrAlreadyResolved, m.ID))
	}
	now := e.clock.Now()
	if !now.Before(m.Proposal.LivenessDeadline) {
		return e.reject("challenge_proposal", fmt.Errorf("%w: liveness window closed at %s", ErrInvalidTiming, m.Proposal.LivenessDeadline))
	}
	if bond < MinChallengeBond {
		return e.reject("challenge_proposal", fmt.Errorf("%w: bond %d below minimum %d", ErrInsufficientValue, bond, MinChallengeBond))
	}

	challenger := caller
	m.State.Challenged = true
	m.State.Challenger = &challenger
	m.State.ChallengeStake += bond

	e.emit(&event.ProposalChallenged{
		Market:         m.ID,
		Challenger:     caller,
		Bond:           bond,
		ChallengeStake: m.State.ChallengeStake,
	})

	if e.metrics != nil {
		e.metrics.ProposalsChallenged.Inc()
	}
	e.applied("challenge_proposal", start)
	e.log.Info().
		Int64("market", m.ID).
		Int64("bond", bond).
		Msg("proposal challenged")

	return nil
}

// FinalizeProposal settles an unchallenged proposal after its liveness
// window: the proposed outcome becomes final and the proposer's bond is
// credited back. Anyone may call it.
func (e *Engine) FinalizeProposal(caller uuid.UUID, marketID int64) error {
	start := time.Now()

	m, ok := e.registry.Get(marketID)
	if !ok {
		return e.reject("finalize_proposal", fmt.Errorf("%w: id %d", ErrMarketNotFound, marketID))
	}

	m.Lock()
	defer m.Unlock()

	if m.Proposal == nil {
		return e.reject("finalize_proposal", fmt.Errorf("%w: market %d", ErrNoProposal, m.ID))
	}
	if m.Proposal.Resolved || m.State.Resolved {
		return e.reject("finalize_proposal", fmt.Errorf("%w: market %d", ErrAlreadyResolved, m.ID))
	}
	if m.State.Challenged {
		return e.reject("finalize_proposal", fmt.Errorf("%w: market %d requires the resolver", ErrChallenged, m.ID))
	}
	now := e.clock.Now()
	if now.Before(m.Proposal.LivenessDeadline) {
		return e.reject("finalize_proposal", fmt.Errorf("%w: liveness window open until %s", ErrInvalidTiming, m.Proposal.LivenessDeadline))
	}
	if err := e.checkPayoutWindow(m, now); err != nil {
		return e.reject("finalize_proposal", err)
	}

	m.Proposal.Resolved = true
	if err := e.balances.Credit(m.Proposal.Proposer, m.Proposal.Bond); err != nil {
		panic(fmt.Sprintf("FATAL: bond return failed: %v", err))
	}

	e.resolveLocked(m, m.Proposal.Outcome)

	e.applied("finalize_proposal", start)
	return nil
}

// ResolveProposal settles a challenged proposal. Only the privileged
// resolver may rule. A correct proposal returns the proposer's bond plus the
// forfeited challenge stake; an incorrect one returns the challenge stake to
// the challenger and forfeits the proposer's bond into the reward pool,
// redirecting the loss to stakers.
func (e *Engine) ResolveProposal(caller uuid.UUID, marketID int64, isProposalCorrect bool) error {
	start := time.Now()

	if caller != e.resolver {
		return e.reject("resolve_proposal", fmt.Errorf("%w: caller is not the resolver", ErrNotOwner))
	}

	m, ok := e.registry.Get(marketID)
	if !ok {
		return e.reject("resolve_proposal", fmt.Errorf("%w: id %d", ErrMarketNotFound, marketID))
	}

	m.Lock()
	defer m.Unlock()

	if m.Proposal == nil {
		return e.reject("resolve_proposal", fmt.Errorf("%w: market %d", ErrNoProposal, m.ID))
	}
	if m.Proposal.Resolved || m.State.Resolved {
		return e.reject("resolve_proposal", fmt.Errorf("%w: market %d", ErrAlreadyResolved, m.ID))
	}
	if !m.State.Challenged {
		return e.reject("resolve_proposal", fmt.Errorf("%w: market %d should be finalized instead", ErrNotChallenged, m.ID))
	}
	now := e.clock.Now()
	if err := e.checkPayoutWindow(m, now); err != nil {
		return e.reject("resolve_proposal", err)
	}

	m.Proposal.Resolved = true

	var outcome market.Outcome
	if isProposalCorrect {
		// Challenger forfeits: proposer recovers bond plus challenge stake.
		outcome = m.Proposal.Outcome
		if err := e.balances.Credit(m.Proposal.Proposer, m.Proposal.Bond+m.State.ChallengeStake); err != nil {
			panic(fmt.Sprintf("FATAL: bond return failed: %v", err))
		}
	} else {
		// Proposer forfeits into the reward pool; the challenger is made
		// whole. The market settles on the opposite side of the wrong
		// proposal.
		outcome = m.Proposal.Outcome.Opposite()
		if m.State.Challenger != nil && m.State.ChallengeStake > 0 {
			if err := e.balances.Credit(*m.State.Challenger, m.State.ChallengeStake); err != nil {
				panic(fmt.Sprintf("FATAL: challenge stake return failed: %v", err))
			}
		}
		m.State.RewardPool += m.Proposal.Bond
	}

	e.resolveLocked(m, outcome)

	e.applied("resolve_proposal", start)
	return nil
}

// checkPayoutWindow enforces the uniform payout buffer: rewards may not be
// distributed before resolution_time + challenge_period. Runs as a check,
// before any effect, so a failing finalize/resolve leaves no trace.
func (e *Engine) checkPayoutWindow(m *market.Market, now time.Time) error {
	gate := m.Core.ResolutionTime.Add(ChallengePeriod)
	if now.Before(gate) {
		return fmt.Errorf("%w: payouts gated until %s", ErrInvalidTiming, gate)
	}
	return nil
}

// resolveLocked fixes the market outcome and runs reward distribution.
// Caller holds the market lock and has already settled all bonds.
func (e *Engine) resolveLocked(m *market.Market, outcome market.Outcome) {
	m.State.Outcome = outcome
	e.distributeRewardsLocked(m)

	e.postCheckLocked(m)

	e.emit(&event.MarketResolved{
		Market:     m.ID,
		Outcome:    outcome.String(),
		Challenged: m.State.Challenged,
	})

	if e.metrics != nil {
		e.metrics.MarketsResolved.WithLabelValues(outcome.String()).Inc()
	}
	e.log.Info().
		Int64("market", m.ID).
		Str("outcome", outcome.String()).
		Bool("challenged", m.State.Challenged).
		Msg("market resolved")
}
