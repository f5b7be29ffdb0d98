package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/celikh/agentflux/internal/domain"
	"github.com/celikh/agentflux/internal/exchange"
)

// Gateway is the Exchange Gateway Port: place an order and fetch its
// fills. Concrete implementations adapt exchange.Exchange (live Binance
// or the paper-trading mock) to domain types.
type Gateway interface {
	PlaceOrder(ctx context.Context, order *domain.Order) (exchangeOrderID string, err error)
	OrderFills(ctx context.Context, exchangeOrderID string) ([]domain.Fill, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Publisher is the subset of the Message Bus Port the execution core needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *domain.Envelope, priority int) error
}

// ReportStore persists execution reports and benchmark summaries for
// later analysis; nil disables persistence.
type ReportStore interface {
	SaveExecutionReport(ctx context.Context, report Report) error
}

// Config holds the Execution Core's tunables.
type Config struct {
	ExchangeFeeRate  float64
	RetryConfig      exchange.RetryConfig
	MonitorInterval  time.Duration
}

// DefaultConfig returns the Execution Core's stated defaults: a 0.1%
// average fee rate and the teacher's default order retry policy.
func DefaultConfig() Config {
	return Config{
		ExchangeFeeRate: 0.001,
		RetryConfig:     exchange.DefaultRetryConfig(),
		MonitorInterval: 10 * time.Second,
	}
}

// Core implements the Execution Core: it dispatches risk-approved orders
// to the exchange gateway, reconciles fills into the position ledger and
// an execution-quality report, and periodically reconciles pending
// orders that never reported a terminal fill.
type Core struct {
	config    Config
	gateway   Gateway
	ledger    *Ledger
	registry  *Registry
	benchmark *Benchmark
	publisher Publisher
	store     ReportStore
	log       zerolog.Logger
	sourceTag string
}

// NewCore wires an Execution Core.
func NewCore(config Config, gateway Gateway, publisher Publisher, store ReportStore, log zerolog.Logger) *Core {
	return &Core{
		config:    config,
		gateway:   gateway,
		ledger:    NewLedger(nil, config.ExchangeFeeRate, log),
		registry:  NewRegistry(),
		benchmark: NewBenchmark(),
		publisher: publisher,
		store:     store,
		log:       log,
		sourceTag: "execution-core",
	}
}

// HandleOrder implements spec §4.4's dispatch-and-reconcile pipeline for
// one risk-approved Order received on the trade.order topic.
func (c *Core) HandleOrder(ctx context.Context, order *domain.Order) error {
	start := time.Now()
	c.registry.Add(order)

	var exchangeOrderID string
	err := exchange.WithRetry(ctx, c.config.RetryConfig, func() error {
		id, placeErr := c.gateway.PlaceOrder(ctx, order)
		if placeErr != nil {
			return placeErr
		}
		exchangeOrderID = id
		return nil
	})
	if err != nil {
		c.registry.UpdateStatus(order.ID, domain.OrderStatusRejected)
		return c.publishReport(ctx, order, nil, start, fmt.Errorf("place order: %w", err))
	}

	order.ExchangeOrderID = exchangeOrderID
	c.registry.UpdateStatus(order.ID, domain.OrderStatusOpen)

	fills, err := c.gateway.OrderFills(ctx, exchangeOrderID)
	if err != nil {
		return fmt.Errorf("fetch fills for order %s: %w", order.ID, err)
	}
	if len(fills) == 0 {
		c.log.Debug().Str("order_id", order.ID.String()).Msg("order open, no fills yet")
		return nil
	}

	if err := c.ledger.ApplyFills(ctx, order.Symbol, order.Side, fills); err != nil {
		return fmt.Errorf("apply fills to ledger: %w", err)
	}

	var filledQty float64
	for _, f := range fills {
		filledQty += f.Quantity
	}
	status := domain.OrderStatusFilled
	if filledQty < order.Quantity {
		status = domain.OrderStatusPartial
	}
	children, _ := c.registry.UpdateStatus(order.ID, status)

	if status == domain.OrderStatusFilled {
		c.cancelBracketChildren(ctx, children)
	}

	return c.publishReport(ctx, order, fills, start, nil)
}

// cancelBracketChildren is a placeholder hook for cancelling the sibling
// STOP_LOSS/TAKE_PROFIT leg once one bracket leg fills; the gateway
// cancel call itself belongs to a future iteration once live bracket
// orders are dispatched (today brackets are represented but not yet
// auto-submitted by the Risk Core).
func (c *Core) cancelBracketChildren(ctx context.Context, children []uuid.UUID) {
	_ = ctx
	_ = children
}

func (c *Core) publishReport(ctx context.Context, order *domain.Order, fills []domain.Fill, start time.Time, dispatchErr error) error {
	if dispatchErr != nil {
		c.log.Error().Err(dispatchErr).Str("order_id", order.ID.String()).Str("symbol", order.Symbol).Msg("order dispatch failed")
	}

	var avgPrice, totalFees, filledQty float64
	for _, f := range fills {
		avgPrice += f.Price * f.Quantity
		totalFees += f.Fee
		filledQty += f.Quantity
	}
	if filledQty > 0 {
		avgPrice /= filledQty
	}

	execReport := &domain.ExecutionReport{
		OrderID:         order.ID,
		ExchangeOrderID: order.ExchangeOrderID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Status:          order.Status,
		FilledQuantity:  filledQty,
		AveragePrice:    avgPrice,
		TotalValue:      avgPrice * filledQty,
		Fee:             totalFees,
		ExecutionTime:   time.Now(),
	}

	env, err := domain.NewEnvelope(domain.MessageTypeExecutionReport, c.sourceTag, execReport)
	if err != nil {
		return fmt.Errorf("build execution report envelope: %w", err)
	}
	env.WithCorrelation(order.CorrelationID)

	if pubErr := c.publisher.Publish(ctx, "execution.report", env, 7); pubErr != nil {
		return fmt.Errorf("publish execution report: %w", pubErr)
	}

	if filledQty > 0 && order.Price > 0 {
		quality := GenerateReport(order.ID.String(), order.Symbol, order.Side, filledQty, order.Price, avgPrice, fills, totalFees, start, time.Now())
		c.benchmark.Add(quality)
		if c.store != nil {
			if err := c.store.SaveExecutionReport(ctx, quality); err != nil {
				c.log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to persist execution quality report")
			}
		}
	}

	return dispatchErr
}

// MonitorPending re-polls every order still tracked as non-terminal,
// reconciling late fills the exchange never pushed a notification for
// (spec §4.4.3).
func (c *Core) MonitorPending(ctx context.Context) {
	for _, order := range c.registry.Pending() {
		if order.ExchangeOrderID == "" {
			continue
		}
		fills, err := c.gateway.OrderFills(ctx, order.ExchangeOrderID)
		if err != nil {
			c.log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("monitor: fetch fills failed")
			continue
		}
		if len(fills) == 0 {
			continue
		}
		if err := c.ledger.ApplyFills(ctx, order.Symbol, order.Side, fills); err != nil {
			c.log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("monitor: apply fills failed")
			continue
		}

		var filledQty float64
		for _, f := range fills {
			filledQty += f.Quantity
		}
		status := domain.OrderStatusFilled
		if filledQty < order.Quantity {
			status = domain.OrderStatusPartial
		}
		c.registry.UpdateStatus(order.ID, status)
	}
}

// RunMonitorLoop ticks MonitorPending every config.MonitorInterval until
// ctx is cancelled.
func (c *Core) RunMonitorLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.MonitorPending(ctx)
		}
	}
}

// Ledger exposes the position ledger for read access (e.g. by an HTTP or
// MCP status endpoint).
func (c *Core) Ledger() *Ledger {
	return c.ledger
}

// Benchmark exposes the execution-quality benchmark tracker.
func (c *Core) Benchmark() *Benchmark {
	return c.benchmark
}
