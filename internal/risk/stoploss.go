package risk

import (
	"fmt"
	"math"

	"github.com/celikh/agentflux/internal/domain"
)

// StopMethod selects the placement algorithm for stop-loss/take-profit
// levels. Grounded on original_source/agents/risk_manager/stop_loss_placement.py.
type StopMethod string

const (
	StopMethodATR               StopMethod = "atr"
	StopMethodPercentage        StopMethod = "percentage"
	StopMethodSupportResistance StopMethod = "support_resistance"
	StopMethodVolatility        StopMethod = "volatility"
	StopMethodTrailing          StopMethod = "trailing"
)

// MarketContext is the best-effort market data the stop-loss placement
// step consults (spec §4.3 step 2). Any field may be zero if unavailable.
type MarketContext struct {
	ATR        float64
	PriceStd   float64
	Support    float64
	Resistance float64
}

// StopLevels is the outcome of stop/take-profit placement.
type StopLevels struct {
	StopLoss        float64
	TakeProfit      float64
	StopLossPct     float64
	TakeProfitPct   float64
	RewardRiskRatio float64
	Method          string
	Reasoning       string
}

const defaultRRRatio = 2.0

// PlaceStops implements spec §4.3.1. If the intent already carries an
// explicit stop_loss/take_profit they are used as-is and no method is
// consulted.
func PlaceStops(method StopMethod, side domain.Direction, currentPrice float64, ctx MarketContext, customStop, customTP *float64) StopLevels {
	var stopLoss, takeProfit float64
	var methodName string

	switch {
	case customStop != nil && customTP != nil:
		stopLoss, takeProfit = *customStop, *customTP
		methodName = "Custom Levels"
	case method == StopMethodATR && ctx.ATR > 0:
		stopLoss, takeProfit = atrStops(currentPrice, ctx.ATR, side)
		methodName = "ATR-based"
	case method == StopMethodVolatility && ctx.PriceStd > 0:
		stopLoss, takeProfit = atrStops(currentPrice, ctx.PriceStd, side) // same shape, different distance source
		methodName = "Volatility-based"
	case method == StopMethodSupportResistance && ctx.Support > 0 && ctx.Resistance > 0:
		stopLoss, takeProfit = supportResistanceStops(currentPrice, ctx.Support, ctx.Resistance, side)
		methodName = "Support/Resistance"
	default:
		stopLoss, takeProfit = percentageStops(currentPrice, side)
		methodName = "Fixed Percentage"
	}

	var stopPct, tpPct float64
	if side == domain.DirectionBuy {
		stopPct = math.Abs(currentPrice-stopLoss) / currentPrice
		tpPct = math.Abs(takeProfit-currentPrice) / currentPrice
	} else {
		stopPct = math.Abs(stopLoss-currentPrice) / currentPrice
		tpPct = math.Abs(currentPrice-takeProfit) / currentPrice
	}

	rr := 1.0
	if stopPct > 0 {
		rr = tpPct / stopPct
	}

	return StopLevels{
		StopLoss:        round2(stopLoss),
		TakeProfit:      round2(takeProfit),
		StopLossPct:     stopPct,
		TakeProfitPct:   tpPct,
		RewardRiskRatio: rr,
		Method:          methodName,
		Reasoning:       reasoningForStops(round2(stopLoss), stopPct, round2(takeProfit), tpPct, rr, methodName),
	}
}

// atrStops covers both the ATR and volatility methods: stop_distance is
// the caller-supplied distance (ATR or price stddev) times a 2x
// multiplier applied here, and take-profit is rr_ratio times
// that distance beyond entry.
func atrStops(price, distance float64, side domain.Direction) (stop, tp float64) {
	d := distance * 2.0
	if side == domain.DirectionBuy {
		return price - d, price + d*defaultRRRatio
	}
	return price + d, price - d*defaultRRRatio
}

func percentageStops(price float64, side domain.Direction) (stop, tp float64) {
	const stopPct = 0.05
	if side == domain.DirectionBuy {
		return price * (1 - stopPct), price * (1 + stopPct*defaultRRRatio)
	}
	return price * (1 + stopPct), price * (1 - stopPct*defaultRRRatio)
}

func supportResistanceStops(price, support, resistance float64, side domain.Direction) (stop, tp float64) {
	const buffer = 0.01
	if side == domain.DirectionBuy {
		stop = support * (1 - buffer)
		risk := price - stop
		tpByRR := price + risk*defaultRRRatio
		tpByResistance := resistance * (1 - buffer)
		return stop, math.Max(tpByRR, tpByResistance)
	}
	stop = resistance * (1 + buffer)
	risk := stop - price
	tpByRR := price - risk*defaultRRRatio
	tpBySupport := support * (1 + buffer)
	return stop, math.Min(tpByRR, tpBySupport)
}

// TrailingInitial returns the initial trailing stop and activation price
// for a fresh position, per spec §4.3.1 Trailing method: 3% trail, 5%
// activation.
func TrailingInitial(entryPrice float64, side domain.Direction) (stopLoss, activationPrice float64) {
	const trailPct = 0.03
	const activationPct = 0.05
	if side == domain.DirectionBuy {
		return entryPrice * (1 - trailPct), entryPrice * (1 + activationPct)
	}
	return entryPrice * (1 + trailPct), entryPrice * (1 - activationPct)
}

// TrailingUpdate ratchets the stop one-way once price has moved
// activation_pct in the position's favor; it never moves the stop back
// toward loss.
func TrailingUpdate(currentPrice, currentStop, entryPrice float64, side domain.Direction) float64 {
	const trailPct = 0.03
	const activationPct = 0.05

	if side == domain.DirectionBuy {
		if currentPrice >= entryPrice*(1+activationPct) {
			newStop := currentPrice * (1 - trailPct)
			return math.Max(currentStop, newStop)
		}
		return currentStop
	}

	if currentPrice <= entryPrice*(1-activationPct) {
		newStop := currentPrice * (1 + trailPct)
		return math.Min(currentStop, newStop)
	}
	return currentStop
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func reasoningForStops(stop, stopPct, tp, tpPct, rr float64, method string) string {
	return fmt.Sprintf(
		"Stop: $%.2f (%.1f%%) | TP: $%.2f (%.1f%%) | R/R: %.2f:1 | Method: %s",
		stop, stopPct*100, tp, tpPct*100, rr, method,
	)
}
