package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"chatconnect.app/assistant/common/id"
	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/queue"
)

const resultTTL = 5 * time.Minute

type BridgeConfig struct {
	ResultKeyPrefix string
	Timeout         time.Duration
	// ContextTimeout bounds the page context fetch that precedes every send.
	ContextTimeout time.Duration
}

// Bridge is the Adapter for one browser session. Commands go out on the
// session's stream; the extension answers through Deliver.
type Bridge struct {
	client    *redis.Client
	producer  queue.Producer
	sessionID string
	cfg       BridgeConfig
	newID     func() string
	now       func() time.Time
}

func NewBridge(client *redis.Client, producer queue.Producer, sessionID string, cfg BridgeConfig) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ContextTimeout <= 0 || cfg.ContextTimeout > cfg.Timeout {
		cfg.ContextTimeout = min(2*time.Second, cfg.Timeout)
	}
	if cfg.ResultKeyPrefix == "" {
		cfg.ResultKeyPrefix = "page-result:"
	}
	return &Bridge{
		client:    client,
		producer:  producer,
		sessionID: sessionID,
		cfg:       cfg,
		newID:     id.NewString,
		now:       time.Now,
	}
}

func (b *Bridge) SetFieldValue(ctx context.Context, selector, value string) model.FunctionResult {
	sel, err := SanitizeSelector(selector)
	if err != nil {
		return Failure(err)
	}
	return b.do(ctx, queue.Command{Action: queue.ActionSetFieldValue, Selector: sel, Value: value}, b.cfg.Timeout)
}

func (b *Bridge) ClickElement(ctx context.Context, selector string) model.FunctionResult {
	sel, err := SanitizeSelector(selector)
	if err != nil {
		return Failure(err)
	}
	return b.do(ctx, queue.Command{Action: queue.ActionClickElement, Selector: sel}, b.cfg.Timeout)
}

func (b *Bridge) GetPageContent(ctx context.Context, format Format) model.FunctionResult {
	if format == "" {
		format = FormatText
	}
	if !format.IsValid() {
		return Failure(fmt.Errorf("unsupported format %q", format))
	}
	return b.do(ctx, queue.Command{Action: queue.ActionGetPageContent, Format: string(format)}, b.cfg.Timeout)
}

func (b *Bridge) GetPageContext(ctx context.Context) (*model.MessageContext, error) {
	res := b.do(ctx, queue.Command{Action: queue.ActionGetPageContext}, b.cfg.ContextTimeout)
	if !res.Success {
		return nil, fmt.Errorf("get page context: %s", res.Error)
	}
	var pc model.MessageContext
	if err := json.Unmarshal([]byte(res.Result), &pc); err != nil {
		return nil, fmt.Errorf("decode page context: %w", err)
	}
	return &pc, nil
}

func (b *Bridge) do(ctx context.Context, cmd queue.Command, timeout time.Duration) model.FunctionResult {
	cmd.ID = b.newID()
	cmd.SessionID = b.sessionID
	cmd.ExpiresAt = b.now().Add(timeout)

	sc := logger.StartSpan(ctx, "page.command")
	defer sc.End()
	ctx = sc.Context()
	sc.Span().SetAttributes(
		attribute.String("page.action", string(cmd.Action)),
		attribute.String("page.command_id", cmd.ID),
	)
	if spanCtx := sc.Span().SpanContext(); spanCtx.IsValid() {
		cmd.TraceID = spanCtx.TraceID().String()
		cmd.SpanID = spanCtx.SpanID().String()
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(b.sessionID),
		Component: "assistant.page.bridge",
	})

	if err := b.producer.Enqueue(ctx, cmd); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "failed to publish page command", "error", err, "action", cmd.Action)
		return Failure(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	vals, err := b.client.BLPop(ctx, timeout, ResultKey(b.cfg.ResultKeyPrefix, b.sessionID, cmd.ID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "page command timed out", "action", cmd.Action, "command_id", cmd.ID)
		return Failure(ErrTimeout)
	case err != nil:
		sc.RecordError(err)
		if ctx.Err() != nil {
			return Failure(ctx.Err())
		}
		return Failure(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	var res model.FunctionResult
	if err := json.Unmarshal([]byte(vals[1]), &res); err != nil {
		return Failure(fmt.Errorf("decode page result: %w", err))
	}
	slog.DebugContext(ctx, "page command resolved", "action", cmd.Action, "command_id", cmd.ID, "success", res.Success)
	return res
}

// ResultKey is the list a command's result is pushed to. Keys are scoped by
// session so one session cannot answer another's commands.
func ResultKey(prefix, sessionID, commandID string) string {
	return prefix + sessionID + ":" + commandID
}

// Deliver hands the extension's result for commandID to the bridge call
// waiting in sessionID.
func Deliver(ctx context.Context, client *redis.Client, prefix, sessionID, commandID string, result model.FunctionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode page result: %w", err)
	}
	key := ResultKey(prefix, sessionID, commandID)
	pipe := client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, resultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deliver page result: %w", err)
	}
	return nil
}
