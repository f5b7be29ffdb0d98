package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/celikh/agentflux/internal/domain"
	"github.com/celikh/agentflux/internal/exchange"
	"github.com/celikh/agentflux/internal/market"
)

// priceOracle is the subset of market data sourcing the gateway needs for
// CurrentPrice; satisfied by *market.CachedCoinGeckoClient.
type priceOracle interface {
	GetPrice(ctx context.Context, symbol string, vsCurrency string) (*market.PriceResult, error)
}

// ExchangeGateway adapts the teacher's exchange.Exchange (order placement
// and fills) and a cached market data client (price discovery) into the
// Gateway port, translating between domain's wire types and the
// exchange package's native Order/Fill/PlaceOrderRequest types.
type ExchangeGateway struct {
	exch   exchange.Exchange
	prices priceOracle
}

// NewExchangeGateway builds a Gateway backed by a concrete exchange
// implementation (mock or live) and a price oracle.
func NewExchangeGateway(exch exchange.Exchange, prices priceOracle) *ExchangeGateway {
	return &ExchangeGateway{exch: exch, prices: prices}
}

func toExchangeSide(side domain.Direction) exchange.OrderSide {
	if side == domain.DirectionSell {
		return exchange.OrderSideSell
	}
	return exchange.OrderSideBuy
}

func toExchangeType(orderType domain.OrderType) exchange.OrderType {
	if orderType == domain.OrderTypeLimit {
		return exchange.OrderTypeLimit
	}
	return exchange.OrderTypeMarket
}

// PlaceOrder submits order to the underlying exchange and returns its
// exchange-assigned order ID.
func (g *ExchangeGateway) PlaceOrder(ctx context.Context, order *domain.Order) (string, error) {
	resp, err := g.exch.PlaceOrder(ctx, exchange.PlaceOrderRequest{
		Symbol:   order.Symbol,
		Side:     toExchangeSide(order.Side),
		Type:     toExchangeType(order.OrderType),
		Quantity: order.Quantity,
		Price:    order.Price,
	})
	if err != nil {
		return "", fmt.Errorf("place order on exchange: %w", err)
	}
	if resp.Status == exchange.OrderStatusRejected {
		return "", fmt.Errorf("exchange rejected order: %s", resp.Message)
	}
	return resp.OrderID, nil
}

// OrderFills retrieves and translates fills for an exchange order.
func (g *ExchangeGateway) OrderFills(ctx context.Context, exchangeOrderID string) ([]domain.Fill, error) {
	fills, err := g.exch.GetOrderFills(ctx, exchangeOrderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order fills: %w", err)
	}
	out := make([]domain.Fill, 0, len(fills))
	for i, f := range fills {
		out = append(out, domain.Fill{
			FillID:    fmt.Sprintf("%s-%d", exchangeOrderID, i),
			Quantity:  f.Quantity,
			Price:     f.Price,
			Cost:      f.Quantity * f.Price,
			Timestamp: f.Timestamp,
		})
	}
	return out, nil
}

// CurrentPrice fetches the market price for a symbol via the cached
// price oracle, quoting against USDT as the teacher's market module does
// throughout.
func (g *ExchangeGateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := g.prices.GetPrice(ctx, symbol, "usdt")
	if err != nil {
		return 0, fmt.Errorf("fetch current price for %s: %w", symbol, err)
	}
	return result.Price, nil
}
