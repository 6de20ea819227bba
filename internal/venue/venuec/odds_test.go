package venuec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func scaledProb(prob float64) string {
	scale := new(big.Float).SetPrec(200).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil))
	f := new(big.Float).SetPrec(200).SetFloat64(prob)
	f.Mul(f, scale)
	i, _ := f.Int(nil)
	return i.String()
}

func TestParseMakerProb(t *testing.T) {
	raw := scaledProb(0.55)
	prob, err := parseMakerProb(raw)
	require.NoError(t, err)
	require.InDelta(t, 0.55, prob, 1e-9)
}

func TestParseMakerProbRejectsGarbage(t *testing.T) {
	_, err := parseMakerProb("not-a-number")
	require.Error(t, err)
}

func TestTakerDecimalOddsClampedToFloor(t *testing.T) {
	require.Equal(t, 1.01, takerDecimalOdds(0.999))
	require.Equal(t, 1.01, takerDecimalOdds(0.0001))
}

func TestTakerDecimalOddsMatchesFormula(t *testing.T) {
	odds := takerDecimalOdds(0.5)
	require.InDelta(t, 2.0, odds, 1e-9)
}
