package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celikh/agentflux/internal/domain"
)

func sig(agentType string, direction domain.Direction, confidence float64, age time.Duration) domain.TradingSignal {
	return domain.TradingSignal{
		AgentType:  agentType,
		Symbol:     "BTC/USDT",
		Signal:     direction,
		Confidence: confidence,
		Reasoning:  "test",
		Timestamp:  time.Now().Add(-age),
	}
}

func TestBayesianFuserNoSignalsHolds(t *testing.T) {
	f := NewBayesianFuser()
	result := f.Fuse(nil)
	assert.Equal(t, domain.DirectionHold, result.Direction)
}

func TestBayesianFuserWeightsByPastAccuracy(t *testing.T) {
	f := NewBayesianFuser()
	f.UpdatePerformance("momentum", 0.9)
	f.UpdatePerformance("reversal", 0.2)

	signals := []domain.TradingSignal{
		sig("momentum", domain.DirectionBuy, 0.8, 0),
		sig("reversal", domain.DirectionSell, 0.8, 0),
	}

	result := f.Fuse(signals)
	assert.Equal(t, domain.DirectionBuy, result.Direction)
	assert.Greater(t, result.BuyScore, result.SellScore)
}

func TestConsensusFuserRequiresAgreement(t *testing.T) {
	f := NewConsensusFuser()
	signals := []domain.TradingSignal{
		sig("a", domain.DirectionBuy, 0.8, 0),
		sig("b", domain.DirectionBuy, 0.7, 0),
		sig("c", domain.DirectionSell, 0.9, 0),
	}
	result := f.Fuse(signals)
	assert.Equal(t, domain.DirectionBuy, result.Direction)
}

func TestConsensusFuserNoConsensusHolds(t *testing.T) {
	f := NewConsensusFuser()
	signals := []domain.TradingSignal{
		sig("a", domain.DirectionBuy, 0.8, 0),
		sig("b", domain.DirectionSell, 0.7, 0),
	}
	result := f.Fuse(signals)
	assert.Equal(t, domain.DirectionHold, result.Direction)
}

func TestConsensusFuserIgnoresWeakSignals(t *testing.T) {
	f := NewConsensusFuser()
	signals := []domain.TradingSignal{
		sig("a", domain.DirectionBuy, 0.3, 0),
	}
	result := f.Fuse(signals)
	assert.Equal(t, domain.DirectionHold, result.Direction)
	assert.Equal(t, "No strong signals", result.Reasoning[0])
}

func TestTimeDecayFuserFavorsRecentSignals(t *testing.T) {
	f := NewTimeDecayFuser()
	signals := []domain.TradingSignal{
		sig("a", domain.DirectionBuy, 0.9, 0),
		sig("b", domain.DirectionSell, 0.9, 2*time.Hour), // heavily decayed
	}
	result := f.Fuse(signals)
	assert.Equal(t, domain.DirectionBuy, result.Direction)
}

func TestHybridFuserNoSignalsHolds(t *testing.T) {
	f := NewHybridFuser()
	result := f.Fuse(nil)
	assert.Equal(t, domain.DirectionHold, result.Direction)
}

func TestHybridFuserCombinesSubPolicies(t *testing.T) {
	f := NewHybridFuser()
	signals := []domain.TradingSignal{
		sig("a", domain.DirectionBuy, 0.8, 0),
		sig("b", domain.DirectionBuy, 0.85, 0),
		sig("c", domain.DirectionBuy, 0.9, 0),
	}
	result := f.Fuse(signals)
	assert.Equal(t, domain.DirectionBuy, result.Direction)
	assert.Greater(t, result.Confidence, 0.0)
}
