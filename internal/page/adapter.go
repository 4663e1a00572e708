// Package page defines the page-automation primitives the assistant can ask
// the browser to perform, and the bridge that relays them to the extension.
package page

import (
	"context"
	"errors"

	"chatconnect.app/assistant/internal/model"
)

var (
	ErrInvalidSelector = errors.New("invalid selector")
	ErrTimeout         = errors.New("page did not respond in time")
	ErrUnavailable     = errors.New("page unavailable")
)

// Format is the representation returned by GetPageContent.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func (f Format) IsValid() bool {
	switch f {
	case FormatText, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

// Adapter performs one primitive page operation per call. Operation failures
// are reported in the result, never as a Go error.
type Adapter interface {
	SetFieldValue(ctx context.Context, selector, value string) model.FunctionResult
	ClickElement(ctx context.Context, selector string) model.FunctionResult
	GetPageContent(ctx context.Context, format Format) model.FunctionResult
	GetPageContext(ctx context.Context) (*model.MessageContext, error)
}

// Failure builds an unsuccessful result from err.
func Failure(err error) model.FunctionResult {
	return model.FunctionResult{Success: false, Error: err.Error()}
}
