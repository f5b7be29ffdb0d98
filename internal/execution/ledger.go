package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/celikh/agentflux/internal/domain"
)

// PositionStore persists position lifecycle transitions. Implementations
// back onto the relational store; the ledger itself only keeps the
// authoritative in-memory view used for fast reads during fill processing.
type PositionStore interface {
	CreatePosition(ctx context.Context, position domain.Position) error
	AveragePosition(ctx context.Context, positionID uuid.UUID, newEntryPrice, newQuantity, fees float64) error
	PartialClosePosition(ctx context.Context, positionID uuid.UUID, closeQuantity, exitPrice float64, fees float64) (realizedPnL float64, err error)
	ClosePosition(ctx context.Context, positionID uuid.UUID, exitPrice float64, fees float64) (realizedPnL float64, err error)
}

// Ledger is the Execution Core's in-memory position state machine,
// grounded on internal/exchange's position manager: one open position per
// symbol, averaged on same-side adds, partially or fully closed on
// opposite-side fills, and flipped into the opposite side when a closing
// fill overshoots the open quantity.
type Ledger struct {
	mu       sync.RWMutex
	open     map[string]*domain.Position // symbol -> position
	store    PositionStore
	feeRate  float64
	log      zerolog.Logger
}

// NewLedger constructs a Ledger with the given average fee rate (e.g.
// 0.001 for 0.1%, the maker/taker average) and an optional persistence
// backend.
func NewLedger(store PositionStore, feeRate float64, log zerolog.Logger) *Ledger {
	return &Ledger{
		open:    make(map[string]*domain.Position),
		store:   store,
		feeRate: feeRate,
		log:     log,
	}
}

// ApplyFills folds a batch of fills for one order into the ledger,
// opening, averaging, partially closing, fully closing, or flipping the
// symbol's position as needed.
func (l *Ledger) ApplyFills(ctx context.Context, symbol string, side domain.Direction, fills []domain.Fill) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var totalValue, totalQty, totalFees float64
	for _, f := range fills {
		totalValue += f.Price * f.Quantity
		totalQty += f.Quantity
		totalFees += f.Price * f.Quantity * l.feeRate
	}
	if totalQty == 0 {
		return nil
	}
	avgFillPrice := totalValue / totalQty

	existing, hasPosition := l.open[symbol]
	openSide := positionSideFor(side)

	if !hasPosition {
		return l.openPosition(ctx, symbol, openSide, avgFillPrice, totalQty, totalFees)
	}

	if existing.Side == openSide {
		return l.averagePosition(ctx, existing, avgFillPrice, totalQty, totalFees)
	}

	// Opposite-side fill: reduces or closes the existing position, and
	// flips into a new position in the fill's direction on overshoot.
	switch {
	case totalQty >= existing.Quantity:
		closeQty := existing.Quantity
		if err := l.closePosition(ctx, existing, avgFillPrice, totalFees); err != nil {
			return err
		}
		if totalQty > closeQty {
			remaining := totalQty - closeQty
			return l.openPosition(ctx, symbol, openSide, avgFillPrice, remaining, 0)
		}
		return nil
	default:
		return l.partialClosePosition(ctx, existing, totalQty, avgFillPrice, totalFees)
	}
}

func positionSideFor(side domain.Direction) domain.PositionSide {
	if side == domain.DirectionSell {
		return domain.PositionSideShort
	}
	return domain.PositionSideLong
}

func (l *Ledger) openPosition(ctx context.Context, symbol string, side domain.PositionSide, entryPrice, quantity, fees float64) error {
	position := &domain.Position{
		PositionID:      uuid.New(),
		Symbol:          symbol,
		Side:            side,
		EntryPrice:      entryPrice,
		CurrentPrice:    entryPrice,
		Quantity:        quantity,
		InitialQuantity: quantity,
		EntryTime:       time.Now(),
		Status:          domain.PositionStatusOpen,
		Metadata:        map[string]any{"fees": fees},
	}
	l.open[symbol] = position

	if l.store != nil {
		if err := l.store.CreatePosition(ctx, *position); err != nil {
			delete(l.open, symbol)
			return fmt.Errorf("persist opened position: %w", err)
		}
	}

	l.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("entry_price", entryPrice).
		Float64("quantity", quantity).
		Msg("position opened")
	return nil
}

func (l *Ledger) averagePosition(ctx context.Context, position *domain.Position, newPrice, newQuantity, fees float64) error {
	totalValue := position.EntryPrice*position.Quantity + newPrice*newQuantity
	totalQuantity := position.Quantity + newQuantity
	newAvgPrice := totalValue / totalQuantity

	oldPrice, oldQuantity := position.EntryPrice, position.Quantity
	position.EntryPrice = newAvgPrice
	position.Quantity = totalQuantity
	position.InitialQuantity += newQuantity

	if l.store != nil {
		if err := l.store.AveragePosition(ctx, position.PositionID, newAvgPrice, totalQuantity, fees); err != nil {
			position.EntryPrice = oldPrice
			position.Quantity = oldQuantity
			position.InitialQuantity -= newQuantity
			return fmt.Errorf("persist position averaging: %w", err)
		}
	}

	l.log.Info().
		Str("symbol", position.Symbol).
		Float64("old_entry_price", oldPrice).
		Float64("new_entry_price", newAvgPrice).
		Float64("old_quantity", oldQuantity).
		Float64("new_quantity", totalQuantity).
		Msg("position averaged")
	return nil
}

func (l *Ledger) partialClosePosition(ctx context.Context, position *domain.Position, closeQuantity, exitPrice, fees float64) error {
	var realizedPnL float64
	var err error
	if l.store != nil {
		realizedPnL, err = l.store.PartialClosePosition(ctx, position.PositionID, closeQuantity, exitPrice, fees)
		if err != nil {
			return fmt.Errorf("persist partial close: %w", err)
		}
	} else {
		realizedPnL = signedPnL(position.Side, position.EntryPrice, exitPrice, closeQuantity) - fees
	}

	position.Quantity -= closeQuantity
	position.RealizedPnL += realizedPnL
	position.Status = domain.PositionStatusPartiallyClosed

	l.log.Info().
		Str("symbol", position.Symbol).
		Float64("close_quantity", closeQuantity).
		Float64("remaining_quantity", position.Quantity).
		Float64("exit_price", exitPrice).
		Float64("realized_pnl", realizedPnL).
		Msg("position partially closed")
	return nil
}

func (l *Ledger) closePosition(ctx context.Context, position *domain.Position, exitPrice, fees float64) error {
	delete(l.open, position.Symbol)

	var realizedPnL float64
	var err error
	if l.store != nil {
		realizedPnL, err = l.store.ClosePosition(ctx, position.PositionID, exitPrice, fees)
		if err != nil {
			return fmt.Errorf("persist close: %w", err)
		}
	} else {
		realizedPnL = signedPnL(position.Side, position.EntryPrice, exitPrice, position.Quantity) - fees
	}

	position.RealizedPnL += realizedPnL
	position.TotalPnL = position.RealizedPnL
	position.Status = domain.PositionStatusClosed

	l.log.Info().
		Str("symbol", position.Symbol).
		Str("side", string(position.Side)).
		Float64("entry_price", position.EntryPrice).
		Float64("exit_price", exitPrice).
		Float64("realized_pnl", realizedPnL).
		Msg("position closed")
	return nil
}

// signedPnL computes realized P&L before fees: positive for a LONG that
// rose or a SHORT that fell.
func signedPnL(side domain.PositionSide, entryPrice, exitPrice, quantity float64) float64 {
	if side == domain.PositionSideLong {
		return (exitPrice - entryPrice) * quantity
	}
	return (entryPrice - exitPrice) * quantity
}

// UpdateUnrealizedPnL refreshes unrealized P&L for every open position
// given a symbol -> current price map, skipping symbols with no quote.
func (l *Ledger) UpdateUnrealizedPnL(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for symbol, position := range l.open {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		position.CurrentPrice = price
		position.UnrealizedPnL = signedPnL(position.Side, position.EntryPrice, price, position.Quantity)
		if position.EntryPrice > 0 {
			position.UnrealizedPnLPct = position.UnrealizedPnL / (position.EntryPrice * position.Quantity) * 100
		}
		position.TotalPnL = position.RealizedPnL + position.UnrealizedPnL
	}
}

// OpenPositions returns a defensive copy of all currently open positions.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, *p)
	}
	return out
}

// Position returns the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.open[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// TotalUnrealizedPnL sums unrealized P&L across all open positions.
func (l *Ledger) TotalUnrealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, p := range l.open {
		total += p.UnrealizedPnL
	}
	return total
}
