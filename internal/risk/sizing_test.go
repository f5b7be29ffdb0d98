package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxPositionPctFor(t *testing.T) {
	assert.Equal(t, 0.80, maxPositionPctFor(50))
	assert.Equal(t, 0.30, maxPositionPctFor(500))
	assert.Equal(t, 0.10, maxPositionPctFor(10000))
}

func TestKellyFractionClampedAndHalved(t *testing.T) {
	// High win probability should clamp at the max fraction.
	f := kellyFraction(0.95, 3.0)
	assert.LessOrEqual(t, f, kellyMaxFraction)

	// Below coin-flip win probability, the fraction is floored, then halved.
	f = kellyFraction(0.40, 1.5)
	assert.InDelta(t, kellyMinFraction/2, f, 1e-9)

	// Degenerate inputs fall back to the minimum fraction.
	assert.Equal(t, kellyMinFraction, kellyFraction(0, 2.0))
	assert.Equal(t, kellyMinFraction, kellyFraction(1, 2.0))
}

func TestCalculatePositionSizeRespectsMaxPositionCap(t *testing.T) {
	stop := 9000.0
	tp := 11000.0
	size := CalculatePositionSize(PositionSizeInput{
		AccountBalance:       10000,
		CurrentPrice:         10000,
		Confidence:           0.9,
		StopLoss:             &stop,
		TakeProfit:           &tp,
		Method:               SizingMethodFixed,
		MaxTotalRisk:         0.20,
		CurrentPortfolioRisk: 0,
	})

	assert.LessOrEqual(t, size.SizeUSD, 10000*maxPositionPctFor(10000))
	assert.Greater(t, size.Quantity, 0.0)
}

func TestCalculatePositionSizeShrinksUnderPortfolioRiskCap(t *testing.T) {
	stop := 9000.0
	tp := 11000.0
	size := CalculatePositionSize(PositionSizeInput{
		AccountBalance:       10000,
		CurrentPrice:         10000,
		Confidence:           0.7,
		StopLoss:             &stop,
		TakeProfit:           &tp,
		Method:               SizingMethodKelly,
		MaxTotalRisk:         0.01,
		CurrentPortfolioRisk: 0.009,
	})

	newRisk := 0.009 + size.RiskAmount/10000
	assert.InDelta(t, 0.01, newRisk, 0.0005)
}
