package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSortinoRatio(t *testing.T) {
	calc := NewCalculator(nil)

	// Mostly positive returns with a few small losses: Sortino should be
	// comfortably positive since only the losses count against it.
	returns := []float64{0.01, 0.02, -0.005, 0.015, -0.01, 0.03, 0.02}

	sortino, err := calc.CalculateSortinoRatio(returns, 0.0)
	require.NoError(t, err)
	assert.Greater(t, sortino, 0.0)
}

func TestCalculateSortinoRatioNoDownside(t *testing.T) {
	calc := NewCalculator(nil)
	returns := []float64{0.01, 0.02, 0.015}

	_, err := calc.CalculateSortinoRatio(returns, 0.0)
	assert.Error(t, err)
}

func TestCalculateSortinoRatioEmpty(t *testing.T) {
	calc := NewCalculator(nil)
	_, err := calc.CalculateSortinoRatio(nil, 0.0)
	assert.Error(t, err)
}

func TestCalculateParametricVaR(t *testing.T) {
	calc := NewCalculator(nil)
	returns := []float64{0.01, -0.02, 0.015, -0.01, 0.005, -0.03, 0.02}

	varValue, err := calc.CalculateParametricVaR(returns, 0.95)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, varValue, 0.0)
}

func TestCalculateParametricVaREmpty(t *testing.T) {
	calc := NewCalculator(nil)
	_, err := calc.CalculateParametricVaR(nil, 0.95)
	assert.Error(t, err)
}

func TestCalculateMonteCarloVaR(t *testing.T) {
	calc := NewCalculator(nil)
	returns := []float64{0.01, -0.02, 0.015, -0.01, 0.005, -0.03, 0.02, 0.01, -0.005, 0.018}

	varValue, cvarValue, err := calc.CalculateMonteCarloVaR(returns, 0.95, 5000, 42)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, varValue, 0.0)
	assert.GreaterOrEqual(t, cvarValue, varValue-1e-6)
}

func TestCalculateMonteCarloVaRDeterministic(t *testing.T) {
	calc := NewCalculator(nil)
	returns := []float64{0.01, -0.02, 0.015, -0.01, 0.005}

	var1, cvar1, err := calc.CalculateMonteCarloVaR(returns, 0.95, 2000, 7)
	require.NoError(t, err)
	var2, cvar2, err := calc.CalculateMonteCarloVaR(returns, 0.95, 2000, 7)
	require.NoError(t, err)

	assert.Equal(t, var1, var2)
	assert.Equal(t, cvar1, cvar2)
}

func TestCalculatePortfolioHeat(t *testing.T) {
	positions := []HeatPosition{
		{Symbol: "BTC/USDT", EntryPrice: 50000, StopLoss: 49000, Quantity: 0.1, HasStop: true},
		{Symbol: "ETH/USDT", EntryPrice: 3000, StopLoss: 2850, Quantity: 1.0, HasStop: true},
	}

	heat := CalculatePortfolioHeat(positions, 10000)

	assert.Equal(t, 2, heat.PositionCount)
	assert.InDelta(t, 100.0+150.0, heat.TotalRiskUSD, 0.01)
	assert.InDelta(t, 250.0/10000.0, heat.TotalRiskPct, 0.001)
	assert.Equal(t, "ETH/USDT", heat.HottestSymbol)
}

func TestCalculatePortfolioHeatNoStopFallback(t *testing.T) {
	positions := []HeatPosition{{Symbol: "BTC/USDT", SizeUSD: 2000, HasStop: false}}

	heat := CalculatePortfolioHeat(positions, 10000)

	assert.InDelta(t, 2000*noStopHeatFallback, heat.TotalRiskUSD, 0.01)
}

func TestCalculatePortfolioHeatZeroEquity(t *testing.T) {
	heat := CalculatePortfolioHeat([]HeatPosition{{Symbol: "BTC/USDT", EntryPrice: 50000, StopLoss: 49000, Quantity: 0.1, HasStop: true}}, 0)
	assert.Equal(t, 1, heat.PositionCount)
	assert.Equal(t, 0.0, heat.TotalRiskUSD)
}

func TestCalculatePortfolioHeatEmpty(t *testing.T) {
	heat := CalculatePortfolioHeat(nil, 10000)
	assert.Equal(t, 0, heat.PositionCount)
	assert.Equal(t, 0.0, heat.TotalRiskPct)
}
