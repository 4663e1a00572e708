package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatconnect.app/assistant/common/logger"
	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	StreamPrefix string        // Session streams are StreamPrefix + session id
	SessionID    string        // Browser session whose commands are read
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name, one per extension connection
	BatchSize    int64         // Number of commands to read per call
	Block        time.Duration // How long to block for new commands
}

type Message struct {
	ID      string
	Command Command
	Raw     redis.XMessage
}

// RedisConsumer reads a session's page commands on behalf of one extension connection.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	stream string
	now    func() time.Time
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.Group == "" {
		cfg.Group = "extension"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
		stream: CommandStreamName(cfg.StreamPrefix, cfg.SessionID),
		now:    time.Now,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Starting from "0" keeps commands queued before the extension connected;
	// expired ones are dropped on read.
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read returns the next live commands. Expired and unparsable commands are acked and skipped.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(c.cfg.SessionID),
		Component: "assistant.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	messages := []Message{}
	now := c.now()
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			cmd, parseErr := ParseCommand(raw)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse page command",
					"error", parseErr,
					"raw_message_id", raw.ID,
					"stream", c.stream)
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			if cmd.Expired(now) {
				slog.DebugContext(ctx, "dropping expired page command", "command_id", cmd.ID)
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, Message{ID: raw.ID, Command: cmd, Raw: raw})
		}
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.stream, err)
	}
	return nil
}

// Close removes this connection's consumer from the group.
func (c *RedisConsumer) Close(ctx context.Context) error {
	if err := c.client.XGroupDelConsumer(ctx, c.stream, c.cfg.Group, c.cfg.Consumer).Err(); err != nil {
		return fmt.Errorf("deleting consumer: %w", err)
	}
	return nil
}

func ParseCommand(msg redis.XMessage) (Command, error) {
	id, err := parseString(msg.Values, "command_id")
	if err != nil {
		return Command{}, err
	}
	sessionID, err := parseString(msg.Values, "session_id")
	if err != nil {
		return Command{}, err
	}
	actionStr, err := parseString(msg.Values, "action")
	if err != nil {
		return Command{}, err
	}
	action := Action(actionStr)
	if !action.IsValid() {
		return Command{}, fmt.Errorf("unknown action %q", actionStr)
	}

	cmd := Command{
		ID:        id,
		SessionID: sessionID,
		Action:    action,
		Selector:  parseOptionalString(msg.Values, "selector"),
		Value:     parseOptionalString(msg.Values, "value"),
		Format:    parseOptionalString(msg.Values, "format"),
		TraceID:   parseOptionalString(msg.Values, "trace_id"),
		SpanID:    parseOptionalString(msg.Values, "span_id"),
	}

	if expires := parseOptionalString(msg.Values, "expires_at"); expires != "" {
		t, err := time.Parse(time.RFC3339Nano, expires)
		if err != nil {
			return Command{}, fmt.Errorf("parsing expires_at: %w", err)
		}
		cmd.ExpiresAt = t
	}

	switch action {
	case ActionSetFieldValue, ActionClickElement:
		if cmd.Selector == "" {
			return Command{}, fmt.Errorf("missing selector")
		}
	}

	return cmd, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func commandValues(cmd Command) map[string]any {
	values := map[string]any{
		"command_id": cmd.ID,
		"session_id": cmd.SessionID,
		"action":     string(cmd.Action),
	}
	if cmd.Selector != "" {
		values["selector"] = cmd.Selector
	}
	if cmd.Value != "" {
		values["value"] = cmd.Value
	}
	if cmd.Format != "" {
		values["format"] = cmd.Format
	}
	if cmd.TraceID != "" {
		values["trace_id"] = cmd.TraceID
		values["span_id"] = cmd.SpanID
	}
	if !cmd.ExpiresAt.IsZero() {
		values["expires_at"] = cmd.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return values
}
