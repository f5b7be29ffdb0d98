package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction is a signal or order direction. HOLD is a valid signal
// direction but is never itself published as a Trade Intent.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// OrderType enumerates the order kinds the Execution Core dispatches.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopLoss   OrderType = "STOP_LOSS"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus is the normalized lifecycle state of an Order. Terminal
// states (FILLED, CANCELLED, REJECTED, EXPIRED) are absorbing.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// IsTerminal reports whether the status is an absorbing end state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// PositionSide mirrors the order side that opened the position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// PositionStatus tracks how much of a position remains open.
type PositionStatus string

const (
	PositionStatusOpen            PositionStatus = "OPEN"
	PositionStatusPartiallyClosed PositionStatus = "PARTIALLY_CLOSED"
	PositionStatusClosed          PositionStatus = "CLOSED"
)

// MarketDataMessage carries a ticker or OHLCV update from the
// data-collection worker (an external collaborator; this is its contract).
type MarketDataMessage struct {
	Exchange string         `json:"exchange"`
	Symbol   string         `json:"symbol"`
	Payload  map[string]any `json:"payload"` // {"type": "ticker"|"ohlcv", ...fields}
}

// TradingSignal is a single agent's directional read on a symbol.
type TradingSignal struct {
	AgentType   string             `json:"agent_type"`
	AgentName   string             `json:"agent_name"`
	Symbol      string             `json:"symbol"`
	Signal      Direction          `json:"signal"`
	Confidence  float64            `json:"confidence"` // [0,1]
	PriceTarget float64            `json:"price_target,omitempty"`
	StopLoss    *float64           `json:"stop_loss,omitempty"`
	TakeProfit  *float64           `json:"take_profit,omitempty"`
	Reasoning   string             `json:"reasoning"`
	Indicators  map[string]float64 `json:"indicators,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// TradeIntent is a fused, directional decision awaiting sizing and risk
// approval. Quantity is unset (zero) until the Risk Core fills it in.
type TradeIntent struct {
	ID                  uuid.UUID       `json:"id"`
	Symbol              string          `json:"symbol"`
	Side                Direction       `json:"side"` // BUY or SELL only; HOLD never reaches here
	Quantity            float64         `json:"quantity"`
	ExpectedPrice       float64         `json:"expected_price"`
	ContributingSignals []TradingSignal `json:"contributing_signals"`
	Strategy            string          `json:"strategy"`
	Confidence          float64         `json:"confidence"`
	Reasoning           string          `json:"reasoning"`
	FusionDetails       map[string]any  `json:"fusion_details,omitempty"`
	Metadata            map[string]any  `json:"metadata,omitempty"`
	Timestamp           time.Time       `json:"timestamp"`
}

// Order is a risk-approved, exchange-bound instruction.
type Order struct {
	ID              uuid.UUID      `json:"id"`
	CorrelationID   uuid.UUID      `json:"correlation_id"`
	ParentOrderID   *uuid.UUID     `json:"parent_order_id,omitempty"` // set on STOP_LOSS/TAKE_PROFIT children
	Exchange        string         `json:"exchange"`
	Symbol          string         `json:"symbol"`
	Side            Direction      `json:"side"`
	OrderType       OrderType      `json:"order_type"`
	Quantity        float64        `json:"quantity"`
	Price           float64        `json:"price,omitempty"`
	StopLoss        float64        `json:"stop_loss,omitempty"`
	TakeProfit      float64        `json:"take_profit,omitempty"`
	Leverage        int            `json:"leverage"`
	RiskApproved    bool           `json:"risk_approved"`
	RiskParameters  map[string]any `json:"risk_parameters,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ExchangeOrderID string         `json:"exchange_order_id,omitempty"`
	Status          OrderStatus    `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ExecutionReport reconciles an Order against exchange fills.
type ExecutionReport struct {
	OrderID         uuid.UUID   `json:"order_id"`
	ExchangeOrderID string      `json:"exchange_order_id,omitempty"`
	Exchange        string      `json:"exchange"`
	Symbol          string      `json:"symbol"`
	Side            Direction   `json:"side"`
	Status          OrderStatus `json:"status"`
	FilledQuantity  float64     `json:"filled_quantity"`
	AveragePrice    float64     `json:"average_price"`
	TotalValue      float64     `json:"total_value"`
	Fee             float64     `json:"fee"`
	FeeCurrency     string      `json:"fee_currency"`
	ExecutionTime   time.Time   `json:"execution_time"`
}

// Fill is a single exchange trade contributing to an Order's execution.
type Fill struct {
	FillID      string    `json:"fill_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        Direction `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Cost        float64   `json:"cost"`
	Fee         float64   `json:"fee"`
	FeeCurrency string    `json:"fee_currency"`
	Timestamp   time.Time `json:"timestamp"`
	IsMaker     bool      `json:"is_maker"`
}

// Position is a live, Execution-Core-owned exposure mirrored to the store.
type Position struct {
	PositionID       uuid.UUID      `json:"position_id"`
	Symbol           string         `json:"symbol"`
	Side             PositionSide   `json:"side"`
	EntryPrice       float64        `json:"entry_price"`
	CurrentPrice     float64        `json:"current_price"`
	Quantity         float64        `json:"quantity"` // remaining
	InitialQuantity  float64        `json:"initial_quantity"`
	UnrealizedPnL    float64        `json:"unrealized_pnl"`
	UnrealizedPnLPct float64        `json:"unrealized_pnl_pct"`
	RealizedPnL      float64        `json:"realized_pnl"`
	TotalPnL         float64        `json:"total_pnl"`
	StopLoss         float64        `json:"stop_loss,omitempty"`
	TakeProfit       float64        `json:"take_profit,omitempty"`
	EntryTime        time.Time      `json:"entry_time"`
	Status           PositionStatus `json:"status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// RiskAssessment is the Risk Core's verdict on a TradeIntent.
type RiskAssessment struct {
	ID                 uuid.UUID      `json:"id"`
	IntentID           uuid.UUID      `json:"intent_id"`
	Symbol             string         `json:"symbol"`
	Approved           bool           `json:"approved"`
	RiskScore          float64        `json:"risk_score"` // [0,1]
	PositionSize       float64        `json:"position_size"`
	PositionSizeUSD    float64        `json:"position_size_usd"`
	StopLoss           float64        `json:"stop_loss,omitempty"`
	TakeProfit         float64        `json:"take_profit,omitempty"`
	VarEstimate        float64        `json:"var_estimate"`
	MaxLoss            float64        `json:"max_loss"`
	PortfolioRiskAfter float64        `json:"portfolio_risk_after"`
	RejectionReason    string         `json:"rejection_reason,omitempty"`
	RiskMetrics        map[string]any `json:"risk_metrics,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
}

// TradeRejection explains why a TradeIntent did not produce an Order.
type TradeRejection struct {
	IntentID  uuid.UUID `json:"intent_id"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	RiskScore float64   `json:"risk_score,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
