package risk

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/volatility"
)

// CalculatorPriceSource resolves CurrentPrice from the candlesticks table
// via Calculator.GetCurrentPrice, trying the configured interval first
// and falling back to a coarser one if the finer interval has no rows
// yet (spec §4.3 step 1's fallback chain, applied across intervals
// instead of across exchange sources since that is the data this teacher
// stack actually has on hand).
type CalculatorPriceSource struct {
	calc      *Calculator
	intervals []string // tried in order, e.g. []string{"1m", "1h"}
}

// NewCalculatorPriceSource builds a PriceSource over a database-backed
// Calculator.
func NewCalculatorPriceSource(calc *Calculator, intervals ...string) *CalculatorPriceSource {
	if len(intervals) == 0 {
		intervals = []string{"1m", "1h"}
	}
	return &CalculatorPriceSource{calc: calc, intervals: intervals}
}

func (s *CalculatorPriceSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var lastErr error
	for _, interval := range s.intervals {
		price, err := s.calc.GetCurrentPrice(ctx, symbol, interval)
		if err == nil {
			return price, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("no price available for %s: %w", symbol, lastErr)
}

// CalculatorMarketContextSource derives ATR, price stddev, and
// support/resistance from recent closing prices, since the candlestick
// history the Calculator already loads for win-rate and regime detection
// carries everything a stop-loss placement needs without a dedicated ATR
// query.
type CalculatorMarketContextSource struct {
	calc     *Calculator
	interval string
	days     int
}

// NewCalculatorMarketContextSource builds a MarketContextSource over a
// database-backed Calculator.
func NewCalculatorMarketContextSource(calc *Calculator, interval string, days int) *CalculatorMarketContextSource {
	if interval == "" {
		interval = "1h"
	}
	if days <= 0 {
		days = 14
	}
	return &CalculatorMarketContextSource{calc: calc, interval: interval, days: days}
}

func (s *CalculatorMarketContextSource) Context(ctx context.Context, symbol string) (MarketContext, error) {
	hist, err := s.calc.LoadHistoricalPrices(ctx, symbol, s.interval, s.days)
	if err != nil {
		return MarketContext{}, err
	}
	if len(hist.Prices) == 0 {
		return MarketContext{}, fmt.Errorf("no historical prices for %s", symbol)
	}

	support, resistance := hist.Prices[0], hist.Prices[0]
	for _, p := range hist.Prices {
		if p < support {
			support = p
		}
		if p > resistance {
			resistance = p
		}
	}

	priceStd := rollingStdDev(hist.Prices)

	// Approximate ATR from close-to-close absolute moves, since only
	// closing prices are available here (no high/low columns).
	var sumAbsMove float64
	for i := 1; i < len(hist.Prices); i++ {
		move := hist.Prices[i] - hist.Prices[i-1]
		if move < 0 {
			move = -move
		}
		sumAbsMove += move
	}
	atr := 0.0
	if len(hist.Prices) > 1 {
		atr = sumAbsMove / float64(len(hist.Prices)-1)
	}

	return MarketContext{
		ATR:        atr,
		PriceStd:   priceStd,
		Support:    support,
		Resistance: resistance,
	}, nil
}

// rollingStdDev derives the most recent rolling standard deviation from
// cinar/indicator's Bollinger Bands (upper - middle = 2 std dev by
// construction), rather than a hand-rolled population formula, so the
// market-context step leans on the same indicator library the rest of
// this codebase already uses for technical analysis. Falls back to a
// plain sample stddev when the window is too short for the indicator
// to emit a value.
func rollingStdDev(prices []float64) float64 {
	if len(prices) < 20 {
		return calculateStdDev(prices)
	}

	pricesChan := make(chan float64, len(prices))
	for _, p := range prices {
		pricesChan <- p
	}
	close(pricesChan)

	bb := volatility.NewBollingerBandsWithPeriod[float64](20)
	lowerChan, middleChan, upperChan := bb.Compute(pricesChan)

	var lower, middle, upper float64
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower, middle, upper = l, m, u
	}
	if middle == 0 && upper == 0 && lower == 0 {
		return calculateStdDev(prices)
	}
	return (upper - middle) / 2
}
