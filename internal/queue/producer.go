package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen bounds each session stream; delivered commands are acked, not deleted.
const streamMaxLen = 1000

type Producer interface {
	Enqueue(ctx context.Context, cmd Command) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, streamPrefix string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		prefix: streamPrefix,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, cmd Command) error {
	stream := CommandStreamName(p.prefix, cmd.SessionID)

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: commandValues(cmd),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue page command: %w", err)
	}

	p.logger.DebugContext(ctx, "enqueued page command", "command_id", cmd.ID, "action", cmd.Action, "stream", stream)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
