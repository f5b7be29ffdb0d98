// Package domain defines the wire-level entities that cross the message bus
// and the relational store: market data, trading signals, trade intents,
// orders, execution reports, fills, positions, and risk assessments.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is stamped on every outbound envelope. Bump it only on a
// breaking wire-format change; consumers must ignore unknown fields
// regardless of version.
const EnvelopeVersion = "1"

// MessageType discriminates the payload carried by an Envelope. It is the
// single field a deserializer reads before selecting the payload's Go type.
type MessageType string

const (
	MessageTypeMarketTick      MessageType = "market.tick"
	MessageTypeSignal          MessageType = "signal"
	MessageTypeTradeIntent     MessageType = "trade.intent"
	MessageTypeOrder           MessageType = "trade.order"
	MessageTypeTradeRejection  MessageType = "trade.rejection"
	MessageTypeExecutionReport MessageType = "execution.report"
	MessageTypePositionUpdate  MessageType = "position.update"
)

// Envelope is the self-describing record carried over the message bus.
// It matches spec's wire format exactly: version, type, timestamp,
// source_agent, an optional correlation_id threading an intent through its
// resulting order(s) and execution report(s), metadata, and a type-specific
// payload. Unknown fields are ignored by construction: Payload is decoded
// on demand by the consumer that recognizes Type.
type Envelope struct {
	Version       string          `json:"version"`
	Type          MessageType     `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceAgent   string          `json:"source_agent"`
	CorrelationID *uuid.UUID      `json:"correlation_id,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload for the given type and source, marshaling it
// into the envelope's Payload field.
func NewEnvelope(msgType MessageType, sourceAgent string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope payload: %w", err)
	}
	return &Envelope{
		Version:     EnvelopeVersion,
		Type:        msgType,
		Timestamp:   time.Now().UTC(),
		SourceAgent: sourceAgent,
		Payload:     raw,
	}, nil
}

// WithCorrelation stamps a correlation id that threads an intent through its
// resulting order(s) and execution report(s).
func (e *Envelope) WithCorrelation(id uuid.UUID) *Envelope {
	e.CorrelationID = &id
	return e
}

// WithMetadata attaches a metadata key, initializing the map if needed.
func (e *Envelope) WithMetadata(key string, value any) *Envelope {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// Decode unmarshals the envelope's payload into dst. Callers branch on
// e.Type before calling Decode, which is the "single deserializer that
// reads type and selects the variant constructor" pattern: an unrecognized
// Type should be dropped and logged by the caller before Decode is reached.
func (e *Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode envelope payload (type=%s): %w", e.Type, err)
	}
	return nil
}
