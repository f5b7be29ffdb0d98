package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celikh/agentflux/internal/domain"
)

func TestBuffersAdmitRoutesBySymbol(t *testing.T) {
	bs := NewBuffers()
	bs.Admit(sig("a", domain.DirectionBuy, 0.8, 0))
	bs.Admit(domain.TradingSignal{Symbol: "ETH/USDT", AgentType: "b", Signal: domain.DirectionSell, Timestamp: time.Now()})

	symbols := bs.Symbols()
	assert.Len(t, symbols, 2)
}

func TestSignalBufferPruneRemovesStaleSignals(t *testing.T) {
	buf := &SignalBuffer{}
	buf.Admit(domain.TradingSignal{Symbol: "BTC/USDT", Timestamp: time.Now().Add(-time.Hour)})
	buf.Admit(domain.TradingSignal{Symbol: "BTC/USDT", Timestamp: time.Now()})

	removed, empty := buf.prune(10*time.Minute, time.Now())
	assert.Equal(t, 1, removed)
	assert.False(t, empty)

	signals, _ := buf.snapshot()
	assert.Len(t, signals, 1)
}

func TestBuffersEvictEmptyRemovesDrainedSymbol(t *testing.T) {
	bs := NewBuffers()
	bs.Admit(domain.TradingSignal{Symbol: "BTC/USDT", Timestamp: time.Now().Add(-time.Hour)})

	buf := bs.get("BTC/USDT")
	buf.prune(time.Minute, time.Now())
	bs.evictEmpty("BTC/USDT")

	assert.Empty(t, bs.Symbols())
}
