package risk

import (
	"fmt"
	"strings"
)

// ValidationConfig holds the trade validator's thresholds, grounded on
// original_source/agents/risk_manager/risk_assessment.py's TradeValidator.
type ValidationConfig struct {
	MaxPortfolioRisk     float64
	MaxSingleTradeRisk   float64
	MinRewardRiskRatio   float64
	MinConfidence        float64
	MaxCorrelationRisk   float64
}

// DefaultValidationConfig mirrors TradeValidator's constructor defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxPortfolioRisk:   0.20,
		MaxSingleTradeRisk: 0.05,
		MinRewardRiskRatio: 1.5,
		MinConfidence:      0.6,
		MaxCorrelationRisk: 0.30,
	}
}

// ExistingPosition is the minimal shape the correlation-exposure check
// needs from an open position.
type ExistingPosition struct {
	Symbol  string
	SizeUSD float64
}

// TradeValidation is spec §4.3.3's validation outcome.
type TradeValidation struct {
	Symbol             string
	Approved           bool
	RiskScore          float64
	PositionSize       float64
	MaxLoss            float64
	VaRContribution    float64
	PortfolioRiskAfter float64
	RejectionReason    string
	Metadata           map[string]any
}

// baseCurrency returns the part of a "BTC/USDT"-style symbol before the
// slash, used for the same-base-currency correlation check.
func baseCurrency(symbol string) string {
	if i := strings.IndexByte(symbol, '/'); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// ValidateTrade implements spec §4.3.3's scoring table exactly: each
// failed check appends a rejection reason and adds to risk_score, capped
// at 1.0; the trade is approved only when no check fails.
func ValidateTrade(
	cfg ValidationConfig,
	symbol string,
	confidence float64,
	positionSize float64,
	riskAmount float64,
	rewardRiskRatio float64,
	currentPortfolioRisk float64,
	accountBalance float64,
	existingPositions []ExistingPosition,
) TradeValidation {
	var rejections []string
	riskScore := 0.0

	if confidence < cfg.MinConfidence {
		rejections = append(rejections, fmt.Sprintf(
			"Low confidence: %.1f%% < %.1f%%", confidence*100, cfg.MinConfidence*100))
		riskScore += 0.3
	}

	if rewardRiskRatio < cfg.MinRewardRiskRatio {
		rejections = append(rejections, fmt.Sprintf(
			"Poor R/R: %.2f < %.2f", rewardRiskRatio, cfg.MinRewardRiskRatio))
		riskScore += 0.2
	}

	tradeRiskPct := riskAmount / accountBalance
	if tradeRiskPct > cfg.MaxSingleTradeRisk {
		rejections = append(rejections, fmt.Sprintf(
			"Excessive trade risk: %.1f%% > %.1f%%", tradeRiskPct*100, cfg.MaxSingleTradeRisk*100))
		riskScore += 0.3
	}

	newPortfolioRisk := currentPortfolioRisk + tradeRiskPct
	if newPortfolioRisk > cfg.MaxPortfolioRisk {
		rejections = append(rejections, fmt.Sprintf(
			"Portfolio risk limit: %.1f%% > %.1f%%", newPortfolioRisk*100, cfg.MaxPortfolioRisk*100))
		riskScore += 0.4
	}

	var correlationPct float64
	if len(existingPositions) > 0 {
		base := baseCurrency(symbol)
		sameClassExposure := 0.0
		for _, p := range existingPositions {
			if baseCurrency(p.Symbol) == base {
				sameClassExposure += p.SizeUSD
			}
		}
		correlationPct = sameClassExposure / accountBalance
		if correlationPct > cfg.MaxCorrelationRisk {
			rejections = append(rejections, fmt.Sprintf("High correlation exposure: %.1f%%", correlationPct*100))
			riskScore += 0.2
		}
	}

	if riskScore > 1.0 {
		riskScore = 1.0
	}

	approved := len(rejections) == 0
	reason := strings.Join(rejections, "; ")

	varContribution := riskAmount * 1.65

	return TradeValidation{
		Symbol:             symbol,
		Approved:           approved,
		RiskScore:          riskScore,
		PositionSize:       positionSize,
		MaxLoss:            riskAmount,
		VaRContribution:    varContribution,
		PortfolioRiskAfter: newPortfolioRisk,
		RejectionReason:    reason,
		Metadata: map[string]any{
			"confidence":              confidence,
			"reward_risk_ratio":       rewardRiskRatio,
			"trade_risk_pct":          tradeRiskPct,
			"current_portfolio_risk":  currentPortfolioRisk,
			"new_portfolio_risk":      newPortfolioRisk,
			"correlation_pct":         correlationPct,
		},
	}
}
