package engine_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"PredictLedger/internal/engine"
	"PredictLedger/internal/event"
	"PredictLedger/internal/market"
)

// --- Test helpers ---

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureEmitter struct {
	mu        sync.Mutex
	envelopes []event.Envelope
}

func (e *captureEmitter) Emit(env event.Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envelopes = append(e.envelopes, env)
}

func (e *captureEmitter) Types() []event.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]event.EventType, len(e.envelopes))
	for i, env := range e.envelopes {
		types[i] = env.Type
	}
	return types
}

type transferCall struct {
	account uuid.UUID
	amount  int64
}

type fakeTransferor struct {
	fail  bool
	calls []transferCall
}

func (t *fakeTransferor) Transfer(account uuid.UUID, amount int64) error {
	if t.fail {
		return errors.New("settlement unavailable")
	}
	t.calls = append(t.calls, transferCall{account: account, amount: amount})
	return nil
}

type testEnv struct {
	eng      *engine.Engine
	clock    *fakeClock
	emitter  *captureEmitter
	transfer *fakeTransferor
	resolver uuid.UUID
}

func newTestEnv() *testEnv {
	clock := &fakeClock{now: baseTime}
	emitter := &captureEmitter{}
	transfer := &fakeTransferor{}
	resolver := uuid.New()

	eng := engine.NewEngine(resolver, clock, transfer, emitter, nil, zerolog.Nop())
	return &testEnv{
		eng:      eng,
		clock:    clock,
		emitter:  emitter,
		transfer: transfer,
		resolver: resolver,
	}
}

// openMarket creates a market ending 1h from now with resolution at 2h.
func (te *testEnv) openMarket(t *testing.T, creator uuid.UUID, seed int64) int64 {
	t.Helper()
	now := te.clock.Now()
	id, err := te.eng.CreateMarket(creator, "Will it rain tomorrow?", "weather",
		now.Add(time.Hour), now.Add(2*time.Hour), seed)
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	return id
}

// resolveUncontested ends the market, proposes outcome, and finalizes after
// the liveness window and payout gate have both passed.
func (te *testEnv) resolveUncontested(t *testing.T, id int64, proposer uuid.UUID, outcome market.Outcome) {
	t.Helper()
	te.clock.Advance(time.Hour) // past end time
	if err := te.eng.ProposeOutcome(proposer, id, outcome, engine.MinProposalBond); err != nil {
		t.Fatalf("propose: %v", err)
	}
	te.clock.Advance(80 * time.Hour) // past liveness window and payout gate
	if err := te.eng.FinalizeProposal(proposer, id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

// --- Market creation ---

func TestCreateMarketSeedsBothSides(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()

	// Odd seed: the NO side absorbs the remainder.
	id := te.openMarket(t, creator, 2_000_001)

	_, state, ok := te.eng.SnapshotMarket(id)
	if !ok {
		t.Fatal("market not found")
	}
	if state.YesStake != 1_000_000 {
		t.Errorf("yes stake = %d, want 1000000", state.YesStake)
	}
	if state.NoStake != 1_000_001 {
		t.Errorf("no stake = %d, want 1000001", state.NoStake)
	}
	if state.TotalStake != 2_000_001 {
		t.Errorf("total stake = %d, want 2000001", state.TotalStake)
	}
	if state.RewardPool != 0 {
		t.Errorf("seed must not pay a fee, reward pool = %d", state.RewardPool)
	}

	// Both halves are claimable stakes owned by the creator.
	yesStakes, _ := te.eng.SnapshotStakes(id, market.OutcomeYes)
	noStakes, _ := te.eng.SnapshotStakes(id, market.OutcomeNo)
	if len(yesStakes) != 1 || len(noStakes) != 1 {
		t.Fatalf("stake counts = %d/%d, want 1/1", len(yesStakes), len(noStakes))
	}
	if yesStakes[0].Staker != creator || noStakes[0].Staker != creator {
		t.Error("seed stakes must belong to the creator")
	}
	// Fresh market prices both seed halves at 1:1.
	if yesStakes[0].Units != 1_000_000 || noStakes[0].Units != 1_000_001 {
		t.Errorf("seed units = %d/%d, want 1000000/1000001", yesStakes[0].Units, noStakes[0].Units)
	}
}

func TestCreateMarketRejections(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	now := te.clock.Now()

	_, err := te.eng.CreateMarket(creator, "q", "c", now, now.Add(time.Hour), 100)
	if !errors.Is(err, engine.ErrInvalidTiming) {
		t.Errorf("end time not in future: got %v, want ErrInvalidTiming", err)
	}

	_, err = te.eng.CreateMarket(creator, "q", "c", now.Add(2*time.Hour), now.Add(time.Hour), 100)
	if !errors.Is(err, engine.ErrInvalidTiming) {
		t.Errorf("resolution before end: got %v, want ErrInvalidTiming", err)
	}

	_, err = te.eng.CreateMarket(creator, "q", "c", now.Add(time.Hour), now.Add(2*time.Hour), 1)
	if !errors.Is(err, engine.ErrInsufficientValue) {
		t.Errorf("seed too small: got %v, want ErrInsufficientValue", err)
	}

	if te.eng.MarketCount() != 0 {
		t.Errorf("rejected creations must not register markets, count = %d", te.eng.MarketCount())
	}
}

// --- Staking ---

func TestPlaceStakeFeeAndPricing(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()

	id := te.openMarket(t, creator, 2_000_000)

	// 1% of 1_000_000 accrues to the pool; the net 990_000 buys units at
	// the 50% price: 990_000 / 0.5 = 1_980_000.
	index, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 1_000_000)
	if err != nil {
		t.Fatalf("place stake: %v", err)
	}

	_, state, _ := te.eng.SnapshotMarket(id)
	if state.RewardPool != 10_000 {
		t.Errorf("reward pool = %d, want 10000", state.RewardPool)
	}
	if state.YesStake != 1_990_000 {
		t.Errorf("yes stake = %d, want 1990000", state.YesStake)
	}
	if state.TotalStake != state.YesStake+state.NoStake {
		t.Errorf("stake sum broken: total=%d yes=%d no=%d", state.TotalStake, state.YesStake, state.NoStake)
	}

	stakes, _ := te.eng.SnapshotStakes(id, market.OutcomeYes)
	s := stakes[index]
	if s.Amount != 990_000 {
		t.Errorf("principal = %d, want 990000", s.Amount)
	}
	if s.Units != 1_980_000 {
		t.Errorf("units = %d, want 1980000", s.Units)
	}
}

func TestPlaceStakeContrarianEarnsMoreUnits(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	id := te.openMarket(t, creator, 2_000_000)

	herd := uuid.New()
	contrarian := uuid.New()

	// Pile onto YES first so its probability rises.
	if _, err := te.eng.PlaceStake(herd, id, market.OutcomeYes, 5_000_000); err != nil {
		t.Fatalf("herd stake: %v", err)
	}

	hi, err := te.eng.PlaceStake(herd, id, market.OutcomeYes, 1_000_000)
	if err != nil {
		t.Fatalf("herd second stake: %v", err)
	}
	ci, err := te.eng.PlaceStake(contrarian, id, market.OutcomeNo, 1_000_000)
	if err != nil {
		t.Fatalf("contrarian stake: %v", err)
	}

	yesStakes, _ := te.eng.SnapshotStakes(id, market.OutcomeYes)
	noStakes, _ := te.eng.SnapshotStakes(id, market.OutcomeNo)
	if noStakes[ci].Units <= yesStakes[hi].Units {
		t.Errorf("contrarian units %d must exceed herd units %d for equal value",
			noStakes[ci].Units, yesStakes[hi].Units)
	}
}

func TestPlaceStakeRejections(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()
	id := te.openMarket(t, creator, 2_000_000)

	if _, err := te.eng.PlaceStake(alice, 99, market.OutcomeYes, 100); !errors.Is(err, engine.ErrMarketNotFound) {
		t.Errorf("unknown market: got %v, want ErrMarketNotFound", err)
	}
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeUnresolved, 100); !errors.Is(err, engine.ErrInvalidOutcome) {
		t.Errorf("invalid outcome: got %v, want ErrInvalidOutcome", err)
	}
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 0); !errors.Is(err, engine.ErrInsufficientValue) {
		t.Errorf("zero value: got %v, want ErrInsufficientValue", err)
	}

	te.clock.Advance(time.Hour) // market ended
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 100); !errors.Is(err, engine.ErrInvalidTiming) {
		t.Errorf("stake after end: got %v, want ErrInvalidTiming", err)
	}
}

// --- Full lifecycle ---

func TestUncontestedLifecycle(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()
	proposer := uuid.New()

	id := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	te.resolveUncontested(t, id, proposer, market.OutcomeYes)

	_, state, _ := te.eng.SnapshotMarket(id)
	if !state.Resolved || state.Outcome != market.OutcomeYes {
		t.Fatalf("market not resolved YES: resolved=%v outcome=%s", state.Resolved, state.Outcome)
	}

	// Bond returned to the proposer, eager shares paid out of the
	// 10_000 pool: creator 1_000, protocol 1_000, stakers 8_000 lazy.
	if got := te.eng.AccountBalance(proposer); got != engine.MinProposalBond {
		t.Errorf("proposer balance = %d, want %d", got, engine.MinProposalBond)
	}
	if got := te.eng.AccountBalance(creator); got != 1_000 {
		t.Errorf("creator share = %d, want 1000", got)
	}
	if got := te.eng.AccountBalance(te.resolver); got != 1_000 {
		t.Errorf("protocol share = %d, want 1000", got)
	}

	// Alice: 990_000 principal + 1_980_000 * 8_000 / 2_980_000 = 5315.
	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 1); err != nil {
		t.Fatalf("alice unstake: %v", err)
	}
	if got := te.eng.AccountBalance(alice); got != 990_000+5_315 {
		t.Errorf("alice balance = %d, want 995315", got)
	}

	// Creator's YES seed half: 1_000_000 + 1_000_000 * 8_000 / 2_980_000 = 2684.
	if err := te.eng.Unstake(creator, id, market.OutcomeYes, 0); err != nil {
		t.Fatalf("creator yes unstake: %v", err)
	}
	// Creator's NO seed half: principal only, no reward on the losing side.
	if err := te.eng.Unstake(creator, id, market.OutcomeNo, 0); err != nil {
		t.Fatalf("creator no unstake: %v", err)
	}
	wantCreator := int64(1_000) + 1_000_000 + 2_684 + 1_000_000
	if got := te.eng.AccountBalance(creator); got != wantCreator {
		t.Errorf("creator balance = %d, want %d", got, wantCreator)
	}

	// Total staker rewards paid (5315 + 2684) never exceed the 8_000 pool.
	if total := 5_315 + 2_684; total > 8_000 {
		t.Errorf("staker payouts %d exceed pool", total)
	}

	// Each stake is consumed exactly once.
	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 1); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("double claim: got %v, want ErrAlreadyClaimed", err)
	}
}

func TestLifecycleEventStream(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()

	id := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	te.resolveUncontested(t, id, alice, market.OutcomeYes)
	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 1); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	want := []event.EventType{
		event.EventTypeMarketCreated,
		event.EventTypeStakePlaced,
		event.EventTypeOutcomeProposed,
		event.EventTypeRewardsDistributed,
		event.EventTypeMarketResolved,
		event.EventTypeStakeClaimed,
	}
	got := te.emitter.Types()
	if len(got) != len(want) {
		t.Fatalf("event count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	// Sequences are strictly increasing.
	var last int64
	for _, env := range te.emitter.envelopes {
		if env.Sequence <= last {
			t.Errorf("sequence %d not increasing after %d", env.Sequence, last)
		}
		last = env.Sequence
	}
}

// --- Unstake guards ---

func TestUnstakeRejections(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()
	mallory := uuid.New()

	id := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 1); !errors.Is(err, engine.ErrInvalidTiming) {
		t.Errorf("unstake before resolution: got %v, want ErrInvalidTiming", err)
	}

	te.resolveUncontested(t, id, alice, market.OutcomeYes)

	if err := te.eng.Unstake(mallory, id, market.OutcomeYes, 1); !errors.Is(err, engine.ErrNotOwner) {
		t.Errorf("foreign claim: got %v, want ErrNotOwner", err)
	}
	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 7); !errors.Is(err, engine.ErrStakeNotFound) {
		t.Errorf("missing stake: got %v, want ErrStakeNotFound", err)
	}
	if err := te.eng.Unstake(alice, 99, market.OutcomeYes, 1); !errors.Is(err, engine.ErrMarketNotFound) {
		t.Errorf("unknown market: got %v, want ErrMarketNotFound", err)
	}
}

// --- Withdrawals ---

func TestWithdraw(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()

	id := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	te.resolveUncontested(t, id, alice, market.OutcomeYes)
	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 1); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	funded := te.eng.AccountBalance(alice)
	if funded == 0 {
		t.Fatal("alice should hold a balance after claiming")
	}

	if err := te.eng.Withdraw(alice, 100_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := te.eng.AccountBalance(alice); got != funded-100_000 {
		t.Errorf("balance after withdraw = %d, want %d", got, funded-100_000)
	}
	if len(te.transfer.calls) != 1 || te.transfer.calls[0].amount != 100_000 {
		t.Errorf("transfer calls = %+v, want one call of 100000", te.transfer.calls)
	}

	if err := te.eng.Withdraw(alice, funded); !errors.Is(err, engine.ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
}

func TestWithdrawRollsBackOnTransferFailure(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()

	id := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, id, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	te.resolveUncontested(t, id, alice, market.OutcomeYes)
	if err := te.eng.Unstake(alice, id, market.OutcomeYes, 1); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	before := te.eng.AccountBalance(alice)
	te.transfer.fail = true

	err := te.eng.Withdraw(alice, 100_000)
	if !errors.Is(err, engine.ErrTransferFailed) {
		t.Fatalf("failing transfer: got %v, want ErrTransferFailed", err)
	}
	if got := te.eng.AccountBalance(alice); got != before {
		t.Errorf("debit not rolled back: balance = %d, want %d", got, before)
	}
}

// --- Restake ---

func TestRestakeRollsPrincipalForward(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()

	oldID := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, oldID, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	te.resolveUncontested(t, oldID, alice, market.OutcomeYes)

	// A second market still open for staking.
	newID := te.openMarket(t, creator, 2_000_000)

	newIndex, err := te.eng.Restake(alice, oldID, newID, market.OutcomeNo, 1)
	if err != nil {
		t.Fatalf("restake: %v", err)
	}

	// Source stake consumed.
	oldStakes, _ := te.eng.SnapshotStakes(oldID, market.OutcomeYes)
	if !oldStakes[1].Claimed {
		t.Error("source stake not consumed")
	}

	// Principal re-entered through the normal fee-charging path:
	// 990_000 gross, 9_900 fee, 980_100 net.
	newStakes, _ := te.eng.SnapshotStakes(newID, market.OutcomeNo)
	if newStakes[newIndex].Amount != 980_100 {
		t.Errorf("restaked principal = %d, want 980100", newStakes[newIndex].Amount)
	}
	_, newState, _ := te.eng.SnapshotMarket(newID)
	if newState.RewardPool != 9_900 {
		t.Errorf("new market pool = %d, want 9900", newState.RewardPool)
	}
	if newState.TotalStake != newState.YesStake+newState.NoStake {
		t.Errorf("stake sum broken after restake: %+v", newState)
	}

	// The reward share in the source market is forfeited, not credited.
	if got := te.eng.AccountBalance(alice); got != 0 {
		t.Errorf("restake must not credit the ledger, balance = %d", got)
	}

	// The source position cannot be claimed or moved twice.
	if err := te.eng.Unstake(alice, oldID, market.OutcomeYes, 1); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("claim after restake: got %v, want ErrAlreadyClaimed", err)
	}
	if _, err := te.eng.Restake(alice, oldID, newID, market.OutcomeNo, 1); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("double restake: got %v, want ErrAlreadyClaimed", err)
	}
}

func TestRestakeRejections(t *testing.T) {
	te := newTestEnv()
	creator := uuid.New()
	alice := uuid.New()

	oldID := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.PlaceStake(alice, oldID, market.OutcomeYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	if _, err := te.eng.Restake(alice, oldID, oldID, market.OutcomeYes, 1); !errors.Is(err, engine.ErrSameMarket) {
		t.Errorf("same market: got %v, want ErrSameMarket", err)
	}

	newID := te.openMarket(t, creator, 2_000_000)
	if _, err := te.eng.Restake(alice, oldID, newID, market.OutcomeYes, 1); !errors.Is(err, engine.ErrInvalidTiming) {
		t.Errorf("unresolved source: got %v, want ErrInvalidTiming", err)
	}

	te.resolveUncontested(t, oldID, alice, market.OutcomeYes)

	// Target market has also passed its end time by now, so the stake
	// path's open-market guard fires and the source stake stays intact.
	if _, err := te.eng.Restake(alice, oldID, newID, market.OutcomeYes, 1); !errors.Is(err, engine.ErrInvalidTiming) {
		t.Errorf("ended target: got %v, want ErrInvalidTiming", err)
	}
	oldStakes, _ := te.eng.SnapshotStakes(oldID, market.OutcomeYes)
	if oldStakes[1].Claimed {
		t.Error("failed restake must not consume the source stake")
	}

	mallory := uuid.New()
	if _, err := te.eng.Restake(mallory, oldID, newID, market.OutcomeYes, 1); !errors.Is(err, engine.ErrNotOwner) {
		t.Errorf("foreign restake: got %v, want ErrNotOwner", err)
	}
}
