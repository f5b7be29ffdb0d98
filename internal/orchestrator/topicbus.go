package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/celikh/agentflux/internal/domain"
)

// TopicBusConfig configures the durable, prioritized topic bus on top of
// NATS JetStream. Unlike MessageBus's agent-addressed Send/Broadcast, the
// TopicBus implements the bus described by the pipeline: producers publish
// an Envelope to a named topic (ticks.raw, signals.tech, trade.intent,
// trade.order, trade.rejection, execution.report, position.update) and
// every consumer worker gets its own durable, per-consumer queue so a slow
// or restarting consumer never drops a message meant for it.
type TopicBusConfig struct {
	StreamName string        // JetStream stream backing all pipeline topics
	Subjects   []string      // subject patterns the stream captures, e.g. "pipeline.>"
	MaxAge     time.Duration // message TTL, default 1h per spec
	MaxMsgs    int64         // max length, default 10000 per spec
}

// DefaultTopicBusConfig returns the spec's defaults: TTL 1h, max length
// 10000 messages.
func DefaultTopicBusConfig() TopicBusConfig {
	return TopicBusConfig{
		StreamName: "PIPELINE",
		Subjects:   []string{"pipeline.>"},
		MaxAge:     time.Hour,
		MaxMsgs:    10000,
	}
}

// TopicBus is the Message Bus Port's concrete implementation: publish and
// topic-subscribe with durable, prioritized delivery.
type TopicBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config TopicBusConfig
}

// NewTopicBus connects to NATS and provisions the pipeline stream,
// idempotently updating it if it already exists (so repeated worker
// restarts never fail stream creation).
func NewTopicBus(natsURL string, config TopicBusConfig) (*TopicBus, error) {
	nc, err := nats.Connect(
		natsURL,
		nats.Name("agentflux-topicbus"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("topic bus disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("acquire JetStream context: %w", err)
	}

	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  config.Subjects,
		MaxAge:    config.MaxAge,
		MaxMsgs:   config.MaxMsgs,
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
	}

	if _, err := js.AddStream(streamConfig); err != nil {
		if _, updateErr := js.UpdateStream(streamConfig); updateErr != nil {
			nc.Close()
			return nil, fmt.Errorf("provision pipeline stream: %w", err)
		}
	}

	log.Info().
		Str("stream", config.StreamName).
		Dur("max_age", config.MaxAge).
		Int64("max_msgs", config.MaxMsgs).
		Msg("topic bus ready")

	return &TopicBus{nc: nc, js: js, config: config}, nil
}

func (tb *TopicBus) subject(topic string) string {
	return "pipeline." + topic
}

// Publish stamps and publishes env to topic at the given priority (1-10,
// carried in the envelope's metadata so JetStream, which has no native
// priority queue, still lets a consumer reorder on delivery if it chooses
// to buffer and sort a prefetch window).
func (tb *TopicBus) Publish(ctx context.Context, topic string, env *domain.Envelope, priority int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	env.WithMetadata("priority", priority)
	data, err := marshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if _, err := tb.js.Publish(tb.subject(topic), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to topic %q: %w", topic, err)
	}
	return nil
}

// TopicHandler processes one envelope delivered on a topic subscription.
// Handler errors are logged but never propagated to the runtime, per the
// worker runtime's failure semantics; returning an error only prevents the
// message from being acknowledged so JetStream redelivers it.
type TopicHandler func(ctx context.Context, env *domain.Envelope) error

// Subscribe binds a durable, per-worker queue named "<worker>_<topic>"
// and delivers one message at a time (prefetch 1 maps directly onto
// "handlers execute one message at a time per subscription"; the bus
// controls overall concurrency via AckWait/MaxAckPending instead).
func (tb *TopicBus) Subscribe(ctx context.Context, worker, topic string, prefetch int, handler TopicHandler) (*nats.Subscription, error) {
	durable := worker + "_" + topic

	sub, err := tb.js.QueueSubscribe(tb.subject(topic), durable, func(msg *nats.Msg) {
		env, err := unmarshalEnvelope(msg.Data)
		if err != nil {
			log.Error().Err(err).Str("worker", worker).Str("topic", topic).Msg("dropping message: envelope decode failed")
			_ = msg.Ack() // input-contract error: drop and log, never redeliver
			return
		}

		if err := handler(ctx, env); err != nil {
			log.Error().
				Err(err).
				Str("worker", worker).
				Str("topic", topic).
				Str("source_agent", env.SourceAgent).
				Msg("topic handler failed")
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxAckPending(prefetch),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe worker=%s topic=%s: %w", worker, topic, err)
	}
	return sub, nil
}

// Close drains and closes the underlying NATS connection.
func (tb *TopicBus) Close() error {
	return tb.nc.Drain()
}

func marshalEnvelope(env *domain.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func unmarshalEnvelope(data []byte) (*domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
