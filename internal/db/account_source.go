package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/celikh/agentflux/internal/risk"
)

// AccountSource resolves account balance, open positions, and portfolio
// risk from the trading session and positions tables, backing the Risk
// Core's risk.AccountSource port. Lives in this package, not
// internal/risk, since internal/db already depends on internal/risk for
// its circuit breaker and a risk.AccountSource implementation needing
// *DB would otherwise cycle back into this package.
type AccountSource struct {
	database     *DB
	sessionID    uuid.UUID
	startBalance float64
}

var _ risk.AccountSource = (*AccountSource)(nil)

// NewAccountSource builds a risk.AccountSource scoped to a single trading
// session.
func NewAccountSource(database *DB, sessionID uuid.UUID, startBalance float64) *AccountSource {
	return &AccountSource{
		database:     database,
		sessionID:    sessionID,
		startBalance: startBalance,
	}
}

func (s *AccountSource) Balance(ctx context.Context) (float64, error) {
	positions, err := s.database.GetOpenPositions(ctx, s.sessionID)
	if err != nil {
		return s.startBalance, err
	}
	balance := s.startBalance
	for _, p := range positions {
		if p.RealizedPnL != nil {
			balance += *p.RealizedPnL
		}
	}
	return balance, nil
}

func (s *AccountSource) OpenPositions(ctx context.Context) ([]risk.ExistingPosition, error) {
	positions, err := s.database.GetOpenPositions(ctx, s.sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]risk.ExistingPosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, risk.ExistingPosition{
			Symbol:  p.Symbol,
			SizeUSD: p.Quantity * p.EntryPrice,
		})
	}
	return out, nil
}

func (s *AccountSource) CurrentPortfolioRisk(ctx context.Context) (float64, error) {
	positions, err := s.database.GetOpenPositions(ctx, s.sessionID)
	if err != nil {
		return 0, err
	}
	balance, err := s.Balance(ctx)
	if err != nil || balance <= 0 {
		return 0, err
	}
	var exposed float64
	for _, p := range positions {
		exposed += p.Quantity * p.EntryPrice
	}
	return exposed / balance, nil
}
