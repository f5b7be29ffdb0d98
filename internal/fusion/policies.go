package fusion

import (
	"math"
	"sort"
	"time"

	"github.com/celikh/agentflux/internal/domain"
)

// Result is the outcome of applying a fusion policy to a set of signals.
type Result struct {
	Direction  domain.Direction
	Confidence float64
	BuyScore   float64
	SellScore  float64
	Weights    map[string]float64
	Reasoning  []string
	NumSignals int
}

func holdResult(reason string) Result {
	return Result{Direction: domain.DirectionHold, Reasoning: []string{reason}}
}

// decideByScore applies the BUY/SELL/HOLD threshold shared by the
// weighted-posterior and time-decay policies: BUY if buyScore beats
// sellScore and clears 0.30; SELL mirrored; otherwise HOLD. Ties break
// toward HOLD because neither strict inequality holds.
func decideByScore(buyScore, sellScore float64) (domain.Direction, float64) {
	switch {
	case buyScore > sellScore && buyScore > 0.30:
		return domain.DirectionBuy, buyScore
	case sellScore > buyScore && sellScore > 0.30:
		return domain.DirectionSell, sellScore
	default:
		return domain.DirectionHold, math.Max(buyScore, sellScore)
	}
}

// BayesianFuser is the weighted-posterior policy: per agent class, maintain
// a bounded history of observed accuracy and weight each contributing
// signal by a recency-decayed average of that history times its own
// confidence. Grounded on original_source/agents/strategy/signal_fusion.py
// BayesianFusion.
type BayesianFuser struct {
	HistoryWindow int // bounded history length per agent, default 100

	performance map[string][]float64
}

// NewBayesianFuser constructs a fuser with the default 100-entry history
// window used by the source policy.
func NewBayesianFuser() *BayesianFuser {
	return &BayesianFuser{HistoryWindow: 100, performance: make(map[string][]float64)}
}

// UpdatePerformance records an observed accuracy sample for agentType,
// evicting the oldest sample once the history exceeds HistoryWindow.
func (f *BayesianFuser) UpdatePerformance(agentType string, accuracy float64) {
	hist := append(f.performance[agentType], accuracy)
	if len(hist) > f.HistoryWindow {
		hist = hist[len(hist)-f.HistoryWindow:]
	}
	f.performance[agentType] = hist
}

// agentWeight returns the exponentially decayed weighted mean of an agent
// class's accuracy history, falling back to baseConfidence when no history
// exists yet.
func (f *BayesianFuser) agentWeight(agentType string, baseConfidence float64) float64 {
	hist := f.performance[agentType]
	if len(hist) == 0 {
		return baseConfidence
	}

	n := len(hist)
	weights := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		// linspace(-1, 0, n) then exp: most recent entry (last index) gets
		// weight exp(0) = 1, oldest gets exp(-1).
		x := -1.0
		if n > 1 {
			x = -1.0 + float64(i)*(1.0/float64(n-1))
		}
		weights[i] = math.Exp(x)
		sum += weights[i]
	}

	weighted := 0.0
	for i, v := range hist {
		weighted += v * (weights[i] / sum)
	}
	return weighted
}

// Fuse implements the Bayesian (weighted-posterior) fusion policy.
func (f *BayesianFuser) Fuse(signals []domain.TradingSignal) Result {
	if len(signals) == 0 {
		return holdResult("No signals available")
	}

	agentWeights := make(map[string]float64, len(signals))
	for _, sig := range signals {
		base := f.agentWeight(sig.AgentType, 0.5)
		agentWeights[sig.AgentType] = base * sig.Confidence
	}

	total := 0.0
	for _, w := range agentWeights {
		total += w
	}
	if total > 0 {
		for k, w := range agentWeights {
			agentWeights[k] = w / total
		}
	}

	buyScore, sellScore := 0.0, 0.0
	reasoning := make([]string, 0, len(signals))
	for _, sig := range signals {
		weight := agentWeights[sig.AgentType]
		switch sig.Signal {
		case domain.DirectionBuy:
			buyScore += weight
		case domain.DirectionSell:
			sellScore += weight
		}
		reasoning = append(reasoning, sig.AgentType+": "+string(sig.Signal)+" - "+sig.Reasoning)
	}

	direction, confidence := decideByScore(buyScore, sellScore)
	return Result{
		Direction:  direction,
		Confidence: confidence,
		BuyScore:   buyScore,
		SellScore:  sellScore,
		Weights:    agentWeights,
		Reasoning:  reasoning,
		NumSignals: len(signals),
	}
}

// ConsensusFuser requires majority agreement among high-confidence signals.
// Grounded on original_source's ConsensusStrategy.
type ConsensusFuser struct {
	MinConfidence float64 // only signals at or above this vote
	MinAgreement  float64 // fraction of strong signals that must agree
}

// NewConsensusFuser returns a fuser with the source's default 0.60/0.60
// thresholds.
func NewConsensusFuser() *ConsensusFuser {
	return &ConsensusFuser{MinConfidence: 0.60, MinAgreement: 0.60}
}

// Fuse implements the consensus fusion policy.
func (f *ConsensusFuser) Fuse(signals []domain.TradingSignal) Result {
	if len(signals) == 0 {
		return holdResult("No signals")
	}

	strong := make([]domain.TradingSignal, 0, len(signals))
	for _, sig := range signals {
		if sig.Confidence >= f.MinConfidence {
			strong = append(strong, sig)
		}
	}
	if len(strong) == 0 {
		return holdResult("No strong signals")
	}

	buyCount, sellCount := 0, 0
	for _, sig := range strong {
		switch sig.Signal {
		case domain.DirectionBuy:
			buyCount++
		case domain.DirectionSell:
			sellCount++
		}
	}
	total := float64(len(strong))
	buyAgreement := float64(buyCount) / total
	sellAgreement := float64(sellCount) / total

	switch {
	case buyAgreement >= f.MinAgreement:
		return Result{Direction: domain.DirectionBuy, Confidence: meanConfidence(strong, domain.DirectionBuy), NumSignals: len(strong)}
	case sellAgreement >= f.MinAgreement:
		return Result{Direction: domain.DirectionSell, Confidence: meanConfidence(strong, domain.DirectionSell), NumSignals: len(strong)}
	default:
		return holdResult("No consensus reached")
	}
}

func meanConfidence(signals []domain.TradingSignal, dir domain.Direction) float64 {
	sum, n := 0.0, 0
	for _, sig := range signals {
		if sig.Signal == dir {
			sum += sig.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TimeDecayFuser weights each signal by exponential decay over its age,
// favoring recent signals. Grounded on original_source's TimeDecayFusion.
type TimeDecayFuser struct {
	HalfLife time.Duration // default 30 minutes

	now func() time.Time // overridable for deterministic tests
}

// NewTimeDecayFuser returns a fuser with the source's default 30-minute
// half-life.
func NewTimeDecayFuser() *TimeDecayFuser {
	return &TimeDecayFuser{HalfLife: 30 * time.Minute, now: time.Now}
}

func (f *TimeDecayFuser) timeWeight(signalTime time.Time) float64 {
	nowFn := f.now
	if nowFn == nil {
		nowFn = time.Now
	}
	ageMinutes := nowFn().Sub(signalTime).Minutes()
	halfLifeMinutes := f.HalfLife.Minutes()
	if halfLifeMinutes <= 0 {
		halfLifeMinutes = 30
	}
	return math.Pow(0.5, ageMinutes/halfLifeMinutes)
}

// Fuse implements the time-decay fusion policy.
func (f *TimeDecayFuser) Fuse(signals []domain.TradingSignal) Result {
	if len(signals) == 0 {
		return holdResult("No signals")
	}

	buyScore, sellScore, totalWeight := 0.0, 0.0, 0.0
	reasoning := make([]string, 0, len(signals))
	for _, sig := range signals {
		weight := f.timeWeight(sig.Timestamp) * sig.Confidence
		totalWeight += weight
		switch sig.Signal {
		case domain.DirectionBuy:
			buyScore += weight
		case domain.DirectionSell:
			sellScore += weight
		}
		reasoning = append(reasoning, sig.Reasoning)
	}

	if totalWeight > 0 {
		buyScore /= totalWeight
		sellScore /= totalWeight
	}

	direction, confidence := decideByScore(buyScore, sellScore)
	return Result{
		Direction:  direction,
		Confidence: confidence,
		BuyScore:   buyScore,
		SellScore:  sellScore,
		Reasoning:  reasoning,
		NumSignals: len(signals),
	}
}

// HybridFuser runs the three policies above independently and combines
// their votes: for each direction, sum the confidences of the policies that
// voted for it and emit the argmax with confidence = score/3. Grounded on
// original_source's HybridFusion.
type HybridFuser struct {
	Bayesian  *BayesianFuser
	Consensus *ConsensusFuser
	TimeDecay *TimeDecayFuser
}

// NewHybridFuser wires the three sub-policies with their defaults.
func NewHybridFuser() *HybridFuser {
	return &HybridFuser{
		Bayesian:  NewBayesianFuser(),
		Consensus: NewConsensusFuser(),
		TimeDecay: NewTimeDecayFuser(),
	}
}

// Fuse implements the hybrid fusion policy.
func (f *HybridFuser) Fuse(signals []domain.TradingSignal) Result {
	if len(signals) == 0 {
		return holdResult("No signals")
	}

	bayesian := f.Bayesian.Fuse(signals)
	consensus := f.Consensus.Fuse(signals)
	timeDecay := f.TimeDecay.Fuse(signals)

	scores := map[domain.Direction]float64{
		domain.DirectionBuy:  0,
		domain.DirectionSell: 0,
		domain.DirectionHold: 0,
	}
	scores[bayesian.Direction] += bayesian.Confidence
	scores[consensus.Direction] += consensus.Confidence
	scores[timeDecay.Direction] += timeDecay.Confidence

	// argmax with a deterministic tie-break toward HOLD, then BUY, then SELL.
	order := []domain.Direction{domain.DirectionHold, domain.DirectionBuy, domain.DirectionSell}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	final := order[0]

	return Result{
		Direction:  final,
		Confidence: scores[final] / 3,
		Reasoning:  bayesian.Reasoning,
		NumSignals: len(signals),
	}
}
