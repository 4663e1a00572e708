// Package provider connects the conversation to an LLM through a streaming
// event contract.
package provider

import (
	"context"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/tools"
)

type SendMessageParams struct {
	Model        string
	Message      *model.Message
	Instructions string
	History      []*model.Message
	Tools        []tools.Descriptor
	EventHandler EventHandler
}

// FunctionCallResponseParams continues a turn whose calls are all resolved.
// History holds the messages before Message.
type FunctionCallResponseParams struct {
	Model        string
	Message      *model.Message
	Instructions string
	History      []*model.Message
	Tools        []tools.Descriptor
	EventHandler EventHandler
}

// Adapter is an LLM provider. Send calls block until the response is fully
// delivered through the event handler. An error is returned only when the
// call failed before any event was emitted; later failures arrive as Error
// events. A cancelled call returns nil.
type Adapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	SendFunctionCallResponse(ctx context.Context, params FunctionCallResponseParams) error
	CancelActiveRequest()
	Provider() string
}
