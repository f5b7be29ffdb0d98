package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celikh/agentflux/internal/domain"
)

func TestCalculateSlippageBuyPaysMoreIsUnfavorable(t *testing.T) {
	s := CalculateSlippage("BTC/USDT", 100, 101, 2, domain.DirectionBuy)
	assert.Equal(t, 1.0, s.SlippageAmount)
	assert.False(t, s.IsFavorable)
	assert.InDelta(t, 1.0, s.SlippagePercentage, 0.001)
	assert.Equal(t, QualityVeryPoor, s.QualityRating)
}

func TestCalculateSlippageSellGetsLessIsUnfavorable(t *testing.T) {
	s := CalculateSlippage("BTC/USDT", 100, 99, 2, domain.DirectionSell)
	assert.Equal(t, 1.0, s.SlippageAmount)
	assert.False(t, s.IsFavorable)
}

func TestCalculateSlippageFavorableWhenBetterThanExpected(t *testing.T) {
	s := CalculateSlippage("BTC/USDT", 100, 99.95, 2, domain.DirectionBuy)
	assert.True(t, s.IsFavorable)
	assert.Equal(t, QualityExcellent, s.QualityRating)
}

func TestCalculateExecutionCost(t *testing.T) {
	c := CalculateExecutionCost("BTC/USDT", 2, 101, 100, 1.0, domain.DirectionBuy)
	assert.Equal(t, 202.0, c.GrossCost)
	assert.Equal(t, 2.0, c.SlippageCost)
	assert.Equal(t, 205.0, c.TotalCost) // gross + fees + |slippage|
}

func TestGenerateReportWeightsSlippageCostSpeed(t *testing.T) {
	fills := []domain.Fill{{Quantity: 1, Price: 100}}
	start := time.Now().Add(-500 * time.Millisecond)
	end := time.Now()
	report := GenerateReport("order-1", "BTC/USDT", domain.DirectionBuy, 1, 100, 100.05, fills, 0.1, start, end)

	assert.Greater(t, report.QualityScore, 0.0)
	assert.LessOrEqual(t, report.QualityScore, 100.0)
}

func TestBenchmarkAggregatesBySymbol(t *testing.T) {
	b := NewBenchmark()
	b.Add(Report{Symbol: "BTC/USDT", QualityScore: 90, Slippage: SlippageAnalysis{IsFavorable: true}})
	b.Add(Report{Symbol: "BTC/USDT", QualityScore: 70})
	b.Add(Report{Symbol: "ETH/USDT", QualityScore: 50})

	summary := b.GetExecutionSummary("BTC/USDT")
	assert.Equal(t, 2, summary.TotalExecutions)
	assert.InDelta(t, 80.0, summary.AverageQualityScore, 0.001)
	assert.InDelta(t, 50.0, summary.FavorableSlippageRate, 0.001)

	all := b.GetExecutionSummary("")
	assert.Equal(t, 3, all.TotalExecutions)
}
