package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTradeApprovesCleanTrade(t *testing.T) {
	cfg := DefaultValidationConfig()
	v := ValidateTrade(cfg, "BTC/USDT", 0.75, 500, 200, 2.0, 0.05, 10000, nil)

	assert.True(t, v.Approved)
	assert.Empty(t, v.RejectionReason)
	assert.Equal(t, 0.0, v.RiskScore)
}

func TestValidateTradeRejectsLowConfidence(t *testing.T) {
	cfg := DefaultValidationConfig()
	v := ValidateTrade(cfg, "BTC/USDT", 0.4, 500, 200, 2.0, 0.05, 10000, nil)

	assert.False(t, v.Approved)
	assert.Contains(t, v.RejectionReason, "Low confidence")
	assert.InDelta(t, 0.3, v.RiskScore, 0.001)
}

func TestValidateTradeStacksMultipleRejections(t *testing.T) {
	cfg := DefaultValidationConfig()
	// Low confidence + poor R/R + excessive single-trade risk.
	v := ValidateTrade(cfg, "BTC/USDT", 0.3, 500, 900, 1.0, 0.05, 10000, nil)

	assert.False(t, v.Approved)
	assert.InDelta(t, 0.8, v.RiskScore, 0.001)
}

func TestValidateTradeCapsRiskScoreAtOne(t *testing.T) {
	cfg := DefaultValidationConfig()
	existing := []ExistingPosition{{Symbol: "BTC/USD", SizeUSD: 5000}}
	v := ValidateTrade(cfg, "BTC/USDT", 0.1, 500, 900, 0.5, 0.18, 10000, existing)

	assert.LessOrEqual(t, v.RiskScore, 1.0)
	assert.False(t, v.Approved)
}

func TestValidateTradeCorrelationCheckOnlyWithExistingPositions(t *testing.T) {
	cfg := DefaultValidationConfig()
	v := ValidateTrade(cfg, "BTC/USDT", 0.8, 500, 200, 2.0, 0.05, 10000, nil)
	assert.NotContains(t, v.RejectionReason, "correlation")

	existing := []ExistingPosition{{Symbol: "BTC/USD", SizeUSD: 4000}}
	v = ValidateTrade(cfg, "BTC/USDT", 0.8, 500, 200, 2.0, 0.05, 10000, existing)
	assert.Contains(t, v.RejectionReason, "High correlation exposure")
}

func TestValidateTradeVaRContribution(t *testing.T) {
	cfg := DefaultValidationConfig()
	v := ValidateTrade(cfg, "BTC/USDT", 0.8, 500, 200, 2.0, 0.05, 10000, nil)
	assert.InDelta(t, 200*1.65, v.VaRContribution, 0.001)
}
