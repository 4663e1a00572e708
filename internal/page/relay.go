package page

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/queue"
)

// CommandReader is one extension connection's view of its session's
// command stream.
type CommandReader interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Close(ctx context.Context) error
}

type RelayConfig struct {
	StreamPrefix    string
	ResultKeyPrefix string
	Block           time.Duration // Read block per poll; negative disables blocking
}

// Relay is the extension-facing side of the bridge: it opens command
// readers for stream connections and accepts results.
type Relay struct {
	client *redis.Client
	cfg    RelayConfig
}

func NewRelay(client *redis.Client, cfg RelayConfig) *Relay {
	if cfg.ResultKeyPrefix == "" {
		cfg.ResultKeyPrefix = "page-result:"
	}
	return &Relay{client: client, cfg: cfg}
}

func (r *Relay) Open(ctx context.Context, sessionID, connectionID string) (CommandReader, error) {
	return queue.NewRedisConsumer(ctx, r.client, queue.ConsumerConfig{
		StreamPrefix: r.cfg.StreamPrefix,
		SessionID:    sessionID,
		Consumer:     connectionID,
		Block:        r.cfg.Block,
	})
}

func (r *Relay) Deliver(ctx context.Context, sessionID, commandID string, result model.FunctionResult) error {
	return Deliver(ctx, r.client, r.cfg.ResultKeyPrefix, sessionID, commandID, result)
}
