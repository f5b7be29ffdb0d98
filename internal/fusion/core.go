// Package fusion implements the Signal Fusion Core: it buffers
// heterogeneous signals per symbol and periodically fuses them into a
// trade intent using one of four pluggable fusion policies.
package fusion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/celikh/agentflux/internal/domain"
)

// Strategy selects which fusion policy the decision loop applies.
type Strategy string

const (
	StrategyBayesian   Strategy = "bayesian"
	StrategyConsensus  Strategy = "consensus"
	StrategyTimeDecay  Strategy = "time_decay"
	StrategyHybrid     Strategy = "hybrid"
)

// Fuser is implemented by every fusion policy.
type Fuser interface {
	Fuse(signals []domain.TradingSignal) Result
}

// Config holds the decision loop's tunables, named exactly as spec's
// per-worker configuration options.
type Config struct {
	Strategy          Strategy
	MinSignals        int
	SignalTimeout     time.Duration
	MinConfidence     float64
	DecisionInterval  time.Duration
}

// DefaultConfig returns spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:         StrategyHybrid,
		MinSignals:       2,
		SignalTimeout:    300 * time.Second,
		MinConfidence:    0.60,
		DecisionInterval: 30 * time.Second,
	}
}

// Publisher is the subset of the Message Bus Port the fusion core needs:
// publish an envelope to a topic at a given priority.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *domain.Envelope, priority int) error
}

// DecisionRecorder persists a strategy_decision record; best-effort, never
// blocks publication of the intent itself.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, symbol string, result Result, intent *domain.TradeIntent) error
}

// Core owns the per-symbol signal buffers and runs the periodic decision
// loop described in spec §4.2.
type Core struct {
	config    Config
	buffers   *Buffers
	fuser     Fuser
	publisher Publisher
	recorder  DecisionRecorder
	log       zerolog.Logger
	sourceTag string
}

// NewCore wires a fusion Core. fuser must match config.Strategy; callers
// typically build it with NewFuser.
func NewCore(config Config, fuser Fuser, publisher Publisher, recorder DecisionRecorder, log zerolog.Logger) *Core {
	return &Core{
		config:    config,
		buffers:   NewBuffers(),
		fuser:     fuser,
		publisher: publisher,
		recorder:  recorder,
		log:       log,
		sourceTag: "signal-fusion-core",
	}
}

// NewFuser constructs the Fuser matching strategy, defaulting to hybrid for
// an unrecognized value.
func NewFuser(strategy Strategy) Fuser {
	switch strategy {
	case StrategyBayesian:
		return NewBayesianFuser()
	case StrategyConsensus:
		return NewConsensusFuser()
	case StrategyTimeDecay:
		return NewTimeDecayFuser()
	default:
		return NewHybridFuser()
	}
}

// Admit appends an incoming signal to its symbol's buffer. No decision is
// taken on arrival.
func (c *Core) Admit(sig domain.TradingSignal) {
	c.buffers.Admit(sig)
}

// RunDecisionLoop ticks every config.DecisionInterval until ctx is
// cancelled, evaluating every symbol with enough buffered signals.
func (c *Core) RunDecisionLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.DecisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Core) tick(ctx context.Context) {
	for _, symbol := range c.buffers.Symbols() {
		c.evaluateSymbol(ctx, symbol)
	}
	c.janitor()
}

func (c *Core) evaluateSymbol(ctx context.Context, symbol string) {
	buf := c.buffers.get(symbol)
	signals, pending := buf.snapshot()
	if pending < c.config.MinSignals {
		return
	}

	now := time.Now()
	fresh := make([]domain.TradingSignal, 0, len(signals))
	for _, sig := range signals {
		if now.Sub(sig.Timestamp) <= c.config.SignalTimeout {
			fresh = append(fresh, sig)
		}
	}
	if len(fresh) < c.config.MinSignals {
		buf.resetPending()
		return
	}

	result := c.fuser.Fuse(fresh)
	buf.markDecision(now)
	buf.resetPending()

	if result.Direction == domain.DirectionHold || result.Confidence < c.config.MinConfidence {
		c.log.Debug().
			Str("symbol", symbol).
			Str("direction", string(result.Direction)).
			Float64("confidence", result.Confidence).
			Msg("fusion result below actionability threshold, skipping")
		if c.recorder != nil {
			_ = c.recorder.RecordDecision(ctx, symbol, result, nil)
		}
		return
	}

	intent := c.buildIntent(symbol, fresh, result)

	env, err := domain.NewEnvelope(domain.MessageTypeTradeIntent, c.sourceTag, intent)
	if err != nil {
		c.log.Error().Err(err).Str("symbol", symbol).Msg("failed to build trade intent envelope")
		return
	}
	env.WithCorrelation(intent.ID)

	if err := c.publisher.Publish(ctx, "trade.intent", env, 8); err != nil {
		c.log.Error().Err(err).Str("symbol", symbol).Msg("failed to publish trade intent")
		return
	}

	if c.recorder != nil {
		if err := c.recorder.RecordDecision(ctx, symbol, result, intent); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to persist strategy decision")
		}
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("side", string(intent.Side)).
		Float64("confidence", intent.Confidence).
		Int("num_signals", len(fresh)).
		Msg("trade intent published")
}

// buildIntent assembles a Trade Intent from the fusion result, averaging
// stop_loss/take_profit across contributing signals that set them and
// taking expected_price from the most recent contributing signal's
// price_target.
func (c *Core) buildIntent(symbol string, signals []domain.TradingSignal, result Result) *domain.TradeIntent {
	var mostRecent *domain.TradingSignal
	stopSum, stopN := 0.0, 0
	tpSum, tpN := 0.0, 0

	for i := range signals {
		sig := &signals[i]
		if mostRecent == nil || sig.Timestamp.After(mostRecent.Timestamp) {
			mostRecent = sig
		}
		if sig.StopLoss != nil {
			stopSum += *sig.StopLoss
			stopN++
		}
		if sig.TakeProfit != nil {
			tpSum += *sig.TakeProfit
			tpN++
		}
	}

	metadata := map[string]any{}
	if stopN > 0 {
		metadata["stop_loss"] = stopSum / float64(stopN)
	}
	if tpN > 0 {
		metadata["take_profit"] = tpSum / float64(tpN)
	}

	expectedPrice := 0.0
	if mostRecent != nil {
		expectedPrice = mostRecent.PriceTarget
	}

	return &domain.TradeIntent{
		ID:                  uuid.New(),
		Symbol:              symbol,
		Side:                result.Direction,
		Quantity:            0, // filled by Risk Core
		ExpectedPrice:       expectedPrice,
		ContributingSignals: signals,
		Strategy:            string(c.config.Strategy),
		Confidence:          result.Confidence,
		Reasoning:           joinReasoning(result.Reasoning),
		FusionDetails: map[string]any{
			"buy_score":   result.BuyScore,
			"sell_score":  result.SellScore,
			"weights":     result.Weights,
			"num_signals": result.NumSignals,
		},
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

// janitor prunes signals older than SignalTimeout and evicts empty buffers,
// keeping the per-symbol map from growing unbounded on idle symbols.
func (c *Core) janitor() {
	now := time.Now()
	for _, symbol := range c.buffers.Symbols() {
		buf := c.buffers.get(symbol)
		buf.prune(c.config.SignalTimeout, now)
		c.buffers.evictEmpty(symbol)
	}
}

func joinReasoning(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "; "
		}
		out += p
	}
	return out
}
