package venuec

import (
	"fmt"
	"math/big"
)

// oddsScale is the fixed-point scale the venue's maker odds are expressed
// in: a base-10 integer string represents impliedProb * 1e20.
var oddsScale = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil))

// parseMakerProb converts the venue's scaled fixed-point maker probability
// into a float64 in [0,1]. big.Float is used because the raw integer can
// exceed float64's exact-integer range.
func parseMakerProb(raw string) (float64, error) {
	i, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0, fmt.Errorf("venuec: invalid maker_prob_scaled %q", raw)
	}

	f := new(big.Float).SetPrec(200).SetInt(i)
	f.Quo(f, oddsScale)

	prob, _ := f.Float64()
	if prob < 0 || prob > 1 {
		return 0, fmt.Errorf("venuec: maker prob %v out of range", prob)
	}
	return prob, nil
}

// takerDecimalOdds converts an implied maker probability into decimal
// taker odds, clamped to a floor of 1.01 to avoid division blow-up as the
// probability approaches 1.
func takerDecimalOdds(impliedMakerProb float64) float64 {
	if impliedMakerProb >= 0.99 {
		return 1.01
	}
	odds := 1 / (1 - impliedMakerProb)
	if odds < 1.01 {
		return 1.01
	}
	return odds
}
