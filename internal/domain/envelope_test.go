package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type examplePayload struct {
	Symbol string `json:"symbol"`
}

func TestNewEnvelopeRoundTrips(t *testing.T) {
	env, err := NewEnvelope(MessageTypeSignal, "tech-agent", examplePayload{Symbol: "BTC/USDT"})
	require.NoError(t, err)

	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, MessageTypeSignal, env.Type)
	assert.Equal(t, "tech-agent", env.SourceAgent)

	var decoded examplePayload
	require.NoError(t, env.Decode(&decoded))
	assert.Equal(t, "BTC/USDT", decoded.Symbol)
}

func TestEnvelopeWithCorrelationAndMetadata(t *testing.T) {
	env, err := NewEnvelope(MessageTypeTradeIntent, "fusion-core", examplePayload{})
	require.NoError(t, err)

	id := uuid.New()
	env.WithCorrelation(id).WithMetadata("priority", 8)

	require.NotNil(t, env.CorrelationID)
	assert.Equal(t, id, *env.CorrelationID)
	assert.Equal(t, 8, env.Metadata["priority"])
}

func TestEnvelopeDecodeErrorOnMismatchedPayload(t *testing.T) {
	env, err := NewEnvelope(MessageTypeSignal, "agent", examplePayload{Symbol: "ETH/USDT"})
	require.NoError(t, err)

	var badTarget chan int
	err = env.Decode(&badTarget)
	assert.Error(t, err)
}
