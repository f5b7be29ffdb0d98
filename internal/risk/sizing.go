package risk

import (
	"fmt"
	"math"
)

// SizingMethod selects the position sizing algorithm. Grounded on
// original_source/agents/risk_manager/position_sizing.py.
type SizingMethod string

const (
	SizingMethodKelly      SizingMethod = "kelly"
	SizingMethodFixed      SizingMethod = "fixed"
	SizingMethodVolatility SizingMethod = "volatility"
	SizingMethodHybrid     SizingMethod = "hybrid"
)

const (
	kellyMaxFraction       = 0.25
	kellyMinFraction       = 0.01
	kellyConfidenceCutoff  = 0.5
	fixedRiskPerTrade      = 0.02
	defaultRewardRiskRatio = 1.5
	defaultStopLossPct     = 0.05
)

// PositionSizeInput bundles the per-intent sizing inputs spec §4.3.2 names.
type PositionSizeInput struct {
	AccountBalance       float64
	CurrentPrice         float64
	Confidence           float64
	StopLoss             *float64 // nil if absent
	TakeProfit           *float64
	ATR                  float64 // 0 if unavailable
	Method               SizingMethod
	MaxPositionPct       float64 // resolved by the caller from account tier, see maxPositionPctFor
	MaxTotalRisk         float64
	CurrentPortfolioRisk float64
}

// PositionSize is the sizer's output.
type PositionSize struct {
	Quantity     float64
	SizeUSD      float64
	RiskAmount   float64
	KellyFraction float64
	Method       string
	Reasoning    string
	Metadata     map[string]any
}

// maxPositionPctFor implements the small-account rule from spec §4.3.2
// Hybrid: 0.80 below $100, 0.30 below $1000, 0.10 otherwise, keeping
// position sizes above typical exchange minimum notional.
func maxPositionPctFor(balance float64) float64 {
	switch {
	case balance < 100:
		return 0.80
	case balance < 1000:
		return 0.30
	default:
		return 0.10
	}
}

// kellyFraction implements f* = (p*b - (1-p)) / b clamped to
// [0.01, 0.25], halved when p < 0.5.
func kellyFraction(winProbability, rewardRiskRatio float64) float64 {
	if winProbability <= 0 || winProbability >= 1 || rewardRiskRatio <= 0 {
		return kellyMinFraction
	}

	loseProbability := 1 - winProbability
	f := (winProbability*rewardRiskRatio - loseProbability) / rewardRiskRatio
	f = math.Max(kellyMinFraction, f)
	f = math.Min(kellyMaxFraction, f)

	if winProbability < kellyConfidenceCutoff {
		f *= 0.5
	}
	return f
}

func fixedFractionalSize(balance, stopLossPct, maxPositionPct float64) float64 {
	if stopLossPct <= 0 {
		return balance * maxPositionPct
	}
	riskAmount := balance * fixedRiskPerTrade
	size := riskAmount / stopLossPct
	return math.Min(size, balance*maxPositionPct)
}

// CalculatePositionSize implements spec §4.3.2 end to end: method
// selection, the portfolio-risk cap, and the max-position cap.
func CalculatePositionSize(in PositionSizeInput) PositionSize {
	method := in.Method
	if method == "" {
		method = SizingMethodHybrid
	}
	maxPositionPct := in.MaxPositionPct
	if maxPositionPct <= 0 {
		maxPositionPct = maxPositionPctFor(in.AccountBalance)
	}

	rewardRiskRatio := defaultRewardRiskRatio
	if in.StopLoss != nil && in.TakeProfit != nil {
		risk := math.Abs(in.CurrentPrice - *in.StopLoss)
		reward := math.Abs(*in.TakeProfit - in.CurrentPrice)
		if risk > 0 {
			rewardRiskRatio = reward / risk
		}
	}

	stopLossPct := defaultStopLossPct
	switch {
	case in.StopLoss != nil:
		stopLossPct = math.Abs(in.CurrentPrice-*in.StopLoss) / in.CurrentPrice
	case in.ATR > 0:
		stopLossPct = (in.ATR * 2.0) / in.CurrentPrice
	}

	// Confidence 0.6 -> 53% win probability; 0.8 -> 59%; clamped [0.51,0.70].
	winProbability := 0.50 + (in.Confidence-0.5)*0.30
	winProbability = math.Max(0.51, math.Min(0.70, winProbability))

	var sizeUSD, kFraction float64
	var methodLabel string

	switch method {
	case SizingMethodKelly:
		kFraction = kellyFraction(winProbability, rewardRiskRatio)
		sizeUSD = in.AccountBalance * kFraction
		methodLabel = "Kelly Criterion"

	case SizingMethodFixed:
		sizeUSD = fixedFractionalSize(in.AccountBalance, stopLossPct, maxPositionPct)
		kFraction = sizeUSD / in.AccountBalance
		methodLabel = "Fixed Fractional"

	case SizingMethodVolatility:
		if in.ATR > 0 {
			stopDistance := in.ATR * 2.0
			riskAmount := in.AccountBalance * fixedRiskPerTrade
			sizeUSD = riskAmount / (stopDistance / in.CurrentPrice)
		} else {
			sizeUSD = fixedFractionalSize(in.AccountBalance, stopLossPct, maxPositionPct)
		}
		kFraction = sizeUSD / in.AccountBalance
		methodLabel = "Volatility-Based (ATR)"

	default: // hybrid
		kFraction = kellyFraction(winProbability, rewardRiskRatio)
		kellySize := in.AccountBalance * kFraction
		fixedSize := fixedFractionalSize(in.AccountBalance, stopLossPct, maxPositionPct)

		conservative := math.Min(kellySize, fixedSize)
		maxAllowed := in.AccountBalance * maxPositionPct

		if conservative < maxAllowed && maxAllowed <= in.AccountBalance*0.80 {
			sizeUSD = maxAllowed
			methodLabel = "Hybrid (Kelly + Fixed, max-adjusted)"
		} else {
			sizeUSD = conservative
			methodLabel = "Hybrid (Kelly + Fixed)"
		}
		kFraction = sizeUSD / in.AccountBalance
	}

	// Max-position cap.
	maxPositionSize := in.AccountBalance * maxPositionPct
	if sizeUSD > maxPositionSize {
		sizeUSD = maxPositionSize
		kFraction = maxPositionPct
	}

	// Portfolio-risk cap: shrink to exactly consume remaining headroom.
	riskAmount := sizeUSD * stopLossPct
	newTotalRisk := in.CurrentPortfolioRisk + riskAmount/in.AccountBalance
	if newTotalRisk > in.MaxTotalRisk {
		availableRisk := in.MaxTotalRisk - in.CurrentPortfolioRisk
		sizeUSD = (availableRisk * in.AccountBalance) / stopLossPct
		kFraction = sizeUSD / in.AccountBalance
		methodLabel += " (risk-adjusted)"
		newTotalRisk = in.MaxTotalRisk
	}

	quantity := round8(sizeUSD / in.CurrentPrice)
	sizeUSD = round2(sizeUSD)
	riskAmount = round2(sizeUSD * stopLossPct)

	return PositionSize{
		Quantity:      quantity,
		SizeUSD:       sizeUSD,
		RiskAmount:    riskAmount,
		KellyFraction: kFraction,
		Method:        methodLabel,
		Reasoning: fmt.Sprintf(
			"Position size: $%.2f (%.1f%% of portfolio) | Risk: $%.2f (%.1f%% stop) | R:R %.2f:1 | Win prob: %.1f%% | Method: %s",
			sizeUSD, kFraction*100, riskAmount, stopLossPct*100, rewardRiskRatio, winProbability*100, methodLabel,
		),
		Metadata: map[string]any{
			"win_probability":       winProbability,
			"reward_risk_ratio":     rewardRiskRatio,
			"stop_loss_pct":         stopLossPct,
			"confidence":            in.Confidence,
			"current_portfolio_risk": in.CurrentPortfolioRisk,
			"new_total_risk":        newTotalRisk,
		},
	}
}

func round8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
