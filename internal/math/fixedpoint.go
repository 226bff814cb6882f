package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

// ValueConfig is the scale for all staked value, bonds and balances.
var ValueConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // 0.000001

// Precision is the denominator used for probability math. Probabilities live
// in [0, Precision]; a balanced pool prices at Precision/2.
const Precision = 1_000_000_000_000_000_000 // 1e18

var precisionBig = big.NewInt(Precision)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator, truncating toward zero.
// Truncation is load-bearing for reward math: rounding down keeps the sum of
// per-stake payouts at or below the staker share of the pool.
func DivideInt128(numerator *big.Int, denominator int64) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()

	quotient.Div(numerator, denom)
	result := quotient.Int64()

	putInt128(quotient)

	return result
}

// ComputeProbability returns sideStake / (sideStake + oppositeStake) scaled
// by Precision. Caller must guarantee sideStake > 0.
func ComputeProbability(sideStake, oppositeStake int64) int64 {
	total := getInt128()
	total.Add(big.NewInt(sideStake), big.NewInt(oppositeStake))

	num := getInt128()
	num.Mul(big.NewInt(sideStake), precisionBig)
	num.Div(num, total)

	result := num.Int64()

	putInt128(total)
	putInt128(num)

	return result
}

// ComputeUnits converts a stake amount into probability-weighted units given
// the current pool composition:
//
//	units = amount * Precision / probability
//
// Cheaper probability buys proportionally more units, so per-unit cost rises
// as a side accumulates stake.
//
// When the side being backed holds no stake yet the price is 1:1 (units ==
// amount). With both sides empty this is the fresh-market coin-flip price;
// with only the opposite side funded the probability would be zero and 1:1 is
// the defined floor price. Market seeding funds both sides through this path.
func ComputeUnits(amount, sideStake, oppositeStake int64) int64 {
	if sideStake == 0 {
		return amount
	}

	probability := ComputeProbability(sideStake, oppositeStake)

	num := MultiplyInt128(amount, Precision)
	units := DivideInt128(num, probability)
	putInt128(num)

	return units
}

// PercentOf returns amount * percent / 100, truncating.
func PercentOf(amount, percent int64) int64 {
	num := MultiplyInt128(amount, percent)
	result := DivideInt128(num, 100)
	putInt128(num)
	return result
}

// ComputeStakeReward calculates one winning stake's share of the staker pool:
//
//	reward = units * stakerPool / totalWinningUnits
//
// Truncating division guarantees the per-market payout total never exceeds
// stakerPool.
func ComputeStakeReward(units, stakerPool, totalWinningUnits int64) int64 {
	if totalWinningUnits == 0 {
		return 0
	}

	num := MultiplyInt128(units, stakerPool)
	result := DivideInt128(num, totalWinningUnits)
	putInt128(num)

	return result
}
