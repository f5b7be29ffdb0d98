package audit

import (
	"context"
	"fmt"

	"github.com/celikh/agentflux/internal/domain"
	"github.com/celikh/agentflux/internal/execution"
	"github.com/celikh/agentflux/internal/fusion"
	"github.com/celikh/agentflux/internal/risk"
)

// PipelineStore adapts Logger into the fusion, risk, and execution cores'
// persistence ports, so a fused intent, a risk assessment, and an
// execution report all land in the same audit trail as order and
// trading-control events.
type PipelineStore struct {
	log *Logger
}

// NewPipelineStore wraps an existing audit Logger for pipeline-core use.
func NewPipelineStore(log *Logger) *PipelineStore {
	return &PipelineStore{log: log}
}

var (
	_ fusion.DecisionRecorder = (*PipelineStore)(nil)
	_ risk.AssessmentStore    = (*PipelineStore)(nil)
	_ execution.ReportStore   = (*PipelineStore)(nil)
)

// RecordDecision persists the fusion policy's outcome for a symbol,
// regardless of whether it produced an actionable intent.
func (s *PipelineStore) RecordDecision(ctx context.Context, symbol string, result fusion.Result, intent *domain.TradeIntent) error {
	metadata := map[string]interface{}{
		"direction":   string(result.Direction),
		"confidence":  result.Confidence,
		"buy_score":   result.BuyScore,
		"sell_score":  result.SellScore,
		"num_signals": result.NumSignals,
		"reasoning":   result.Reasoning,
	}
	if intent != nil {
		metadata["intent_id"] = intent.ID
		metadata["quantity"] = intent.Quantity
		metadata["strategy"] = intent.Strategy
	}

	return s.log.Log(ctx, &Event{
		EventType: EventTypeTradeIntentFused,
		Severity:  SeverityInfo,
		Resource:  symbol,
		Action:    fmt.Sprintf("fusion decision: %s", result.Direction),
		Success:   true,
		Metadata:  metadata,
	})
}

// SaveAssessment persists the outcome of a risk assessment, approved or
// rejected.
func (s *PipelineStore) SaveAssessment(ctx context.Context, assessment domain.RiskAssessment) error {
	return s.log.Log(ctx, &Event{
		EventType: EventTypeRiskAssessed,
		Severity:  SeverityInfo,
		Resource:  assessment.Symbol,
		Action:    fmt.Sprintf("risk assessment: approved=%t risk_score=%.2f", assessment.Approved, assessment.RiskScore),
		Success:   assessment.Approved,
		Metadata: map[string]interface{}{
			"assessment_id":        assessment.ID,
			"position_size_usd":    assessment.PositionSizeUSD,
			"stop_loss":            assessment.StopLoss,
			"take_profit":          assessment.TakeProfit,
			"portfolio_risk_after": assessment.PortfolioRiskAfter,
		},
	})
}

// SaveExecutionReport persists an execution quality report.
func (s *PipelineStore) SaveExecutionReport(ctx context.Context, report execution.Report) error {
	return s.log.Log(ctx, &Event{
		EventType: EventTypeExecutionReported,
		Severity:  SeverityInfo,
		Resource:  report.OrderID,
		Action:    fmt.Sprintf("execution report: %s %s qty=%.8f", report.Symbol, report.Side, report.Quantity),
		Success:   true,
		Metadata: map[string]interface{}{
			"average_fill_price": report.AverageFillPrice,
			"slippage_pct":       report.Slippage.SlippagePercentage,
			"quality_score":      report.QualityScore,
			"execution_time_ms":  report.ExecutionTimeMS,
		},
	})
}
