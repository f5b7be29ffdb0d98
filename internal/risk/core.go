package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/celikh/agentflux/internal/domain"
)

// PriceSource resolves a symbol's current price, trying each configured
// source in the caller's preferred order before falling back (spec §4.3
// step 1's price fallback chain: last trade price, order book mid,
// time-series latest, reject if all unavailable).
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// MarketContextSource resolves the stop-loss placement inputs (ATR,
// price stddev, support/resistance) for a symbol. Any ported value may
// come back zero when the underlying source has no data.
type MarketContextSource interface {
	Context(ctx context.Context, symbol string) (MarketContext, error)
}

// toHeatPositions adapts the correlation-check's ExistingPosition (which
// carries only a size in USD) into CalculatePortfolioHeat's input; the
// account source doesn't expose each open position's stop-loss distance,
// so every position uses the no-stop fallback rate.
func toHeatPositions(positions []ExistingPosition) []HeatPosition {
	out := make([]HeatPosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, HeatPosition{Symbol: p.Symbol, SizeUSD: p.SizeUSD, HasStop: false})
	}
	return out
}

// AccountSource resolves the account's current balance and open
// positions, used for sizing, validation, and the correlation check.
type AccountSource interface {
	Balance(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context) ([]ExistingPosition, error)
	CurrentPortfolioRisk(ctx context.Context) (float64, error)
}

// Publisher is the subset of the Message Bus Port the risk core needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *domain.Envelope, priority int) error
}

// AssessmentStore persists the risk assessment produced for every intent,
// approved or rejected, for audit and later analysis.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, assessment domain.RiskAssessment) error
}

// Config holds the Risk Core's tunables.
type Config struct {
	StopMethod    StopMethod
	SizingMethod  SizingMethod
	Validation    ValidationConfig
}

// DefaultConfig returns spec's stated Risk Core defaults.
func DefaultConfig() Config {
	return Config{
		StopMethod:   StopMethodATR,
		SizingMethod: SizingMethodHybrid,
		Validation:   DefaultValidationConfig(),
	}
}

// Core implements the Risk Core: for every trade intent it resolves
// price and market context, places stops, sizes the position, validates
// the trade, and publishes either a trade.order or a trade.rejection.
type Core struct {
	config    Config
	prices    PriceSource
	marketCtx MarketContextSource
	account   AccountSource
	publisher Publisher
	store     AssessmentStore
	log       zerolog.Logger
	sourceTag string
}

// NewCore wires a Risk Core.
func NewCore(config Config, prices PriceSource, marketCtx MarketContextSource, account AccountSource, publisher Publisher, store AssessmentStore, log zerolog.Logger) *Core {
	return &Core{
		config:    config,
		prices:    prices,
		marketCtx: marketCtx,
		account:   account,
		publisher: publisher,
		store:     store,
		log:       log,
		sourceTag: "risk-core",
	}
}

// HandleIntent implements spec §4.3's full pipeline for one trade intent
// received on the trade.intent topic.
func (c *Core) HandleIntent(ctx context.Context, intent *domain.TradeIntent) error {
	price, err := c.prices.CurrentPrice(ctx, intent.Symbol)
	if err != nil {
		return c.reject(ctx, intent, fmt.Sprintf("price unavailable: %v", err), nil)
	}

	marketCtx, err := c.marketCtx.Context(ctx, intent.Symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", intent.Symbol).Msg("market context unavailable, falling back to percentage stops")
		marketCtx = MarketContext{}
	}

	balance, err := c.account.Balance(ctx)
	if err != nil {
		return c.reject(ctx, intent, fmt.Sprintf("account balance unavailable: %v", err), nil)
	}

	currentPortfolioRisk, err := c.account.CurrentPortfolioRisk(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("portfolio risk unavailable, assuming zero")
		currentPortfolioRisk = 0
	}

	var customStop, customTP *float64
	if sl, ok := intent.Metadata["stop_loss"].(float64); ok {
		customStop = &sl
	}
	if tp, ok := intent.Metadata["take_profit"].(float64); ok {
		customTP = &tp
	}

	stops := PlaceStops(c.config.StopMethod, intent.Side, price, marketCtx, customStop, customTP)

	size := CalculatePositionSize(PositionSizeInput{
		AccountBalance:       balance,
		CurrentPrice:         price,
		Confidence:           intent.Confidence,
		StopLoss:             &stops.StopLoss,
		TakeProfit:           &stops.TakeProfit,
		ATR:                  marketCtx.ATR,
		Method:               c.config.SizingMethod,
		MaxTotalRisk:         c.config.Validation.MaxPortfolioRisk,
		CurrentPortfolioRisk: currentPortfolioRisk,
	})

	existingPositions, err := c.account.OpenPositions(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("open positions unavailable, skipping correlation check")
	}

	validation := ValidateTrade(
		c.config.Validation,
		intent.Symbol,
		intent.Confidence,
		size.SizeUSD,
		size.RiskAmount,
		stops.RewardRiskRatio,
		currentPortfolioRisk,
		balance,
		existingPositions,
	)

	heat := CalculatePortfolioHeat(toHeatPositions(existingPositions), balance)

	assessment := domain.RiskAssessment{
		ID:                 uuid.New(),
		IntentID:           intent.ID,
		Symbol:             intent.Symbol,
		Approved:           validation.Approved,
		RiskScore:          validation.RiskScore,
		PositionSize:       size.Quantity,
		PositionSizeUSD:    size.SizeUSD,
		StopLoss:           stops.StopLoss,
		TakeProfit:         stops.TakeProfit,
		VarEstimate:        validation.VaRContribution,
		MaxLoss:            validation.MaxLoss,
		PortfolioRiskAfter: validation.PortfolioRiskAfter,
		RejectionReason:    validation.RejectionReason,
		RiskMetrics: map[string]any{
			"portfolio_heat_usd": heat.TotalRiskUSD,
			"portfolio_heat_pct": heat.TotalRiskPct,
			"hottest_symbol":     heat.HottestSymbol,
		},
		Timestamp: time.Now(),
	}

	if c.store != nil {
		if err := c.store.SaveAssessment(ctx, assessment); err != nil {
			c.log.Warn().Err(err).Str("symbol", intent.Symbol).Msg("failed to persist risk assessment")
		}
	}

	if !validation.Approved {
		return c.publishRejection(ctx, intent, validation.RejectionReason, &assessment)
	}

	order := &domain.Order{
		ID:            uuid.New(),
		CorrelationID: intent.ID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		OrderType:     domain.OrderTypeMarket,
		Quantity:      size.Quantity,
		Price:         price,
		StopLoss:      stops.StopLoss,
		TakeProfit:    stops.TakeProfit,
		Status:        domain.OrderStatusPending,
		RiskApproved:  true,
		RiskParameters: map[string]any{
			"risk_score":           validation.RiskScore,
			"portfolio_risk_after": validation.PortfolioRiskAfter,
			"sizing_method":        size.Method,
			"stop_method":          stops.Method,
		},
		CreatedAt: time.Now(),
	}

	env, err := domain.NewEnvelope(domain.MessageTypeOrder, c.sourceTag, order)
	if err != nil {
		return fmt.Errorf("build trade order envelope: %w", err)
	}
	env.WithCorrelation(intent.ID)

	if err := c.publisher.Publish(ctx, "trade.order", env, 9); err != nil {
		return fmt.Errorf("publish trade order: %w", err)
	}

	c.log.Info().
		Str("symbol", intent.Symbol).
		Str("side", string(order.Side)).
		Float64("quantity", order.Quantity).
		Float64("risk_score", validation.RiskScore).
		Msg("trade order approved and published")

	return nil
}

func (c *Core) reject(ctx context.Context, intent *domain.TradeIntent, reason string, assessment *domain.RiskAssessment) error {
	c.log.Warn().Str("symbol", intent.Symbol).Str("reason", reason).Msg("intent rejected before validation")
	return c.publishRejection(ctx, intent, reason, assessment)
}

func (c *Core) publishRejection(ctx context.Context, intent *domain.TradeIntent, reason string, assessment *domain.RiskAssessment) error {
	rejection := &domain.TradeRejection{
		IntentID:  intent.ID,
		Symbol:    intent.Symbol,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if assessment != nil {
		rejection.RiskScore = assessment.RiskScore
	}

	env, err := domain.NewEnvelope(domain.MessageTypeTradeRejection, c.sourceTag, rejection)
	if err != nil {
		return fmt.Errorf("build trade rejection envelope: %w", err)
	}
	env.WithCorrelation(intent.ID)

	if err := c.publisher.Publish(ctx, "trade.rejection", env, 5); err != nil {
		return fmt.Errorf("publish trade rejection: %w", err)
	}
	return nil
}
