package queue

import (
	"fmt"
	"time"
)

// Action names a page primitive executed by the extension.
type Action string

const (
	ActionSetFieldValue  Action = "set_field_value"
	ActionClickElement   Action = "click_element"
	ActionGetPageContent Action = "get_page_content"
	ActionGetPageContext Action = "get_page_context"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionSetFieldValue, ActionClickElement, ActionGetPageContent, ActionGetPageContext:
		return true
	}
	return false
}

// Command is one page operation waiting for the extension.
type Command struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Action    Action    `json:"action"`
	Selector  string    `json:"selector,omitempty"`
	Value     string    `json:"value,omitempty"`
	Format    string    `json:"format,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	SpanID    string    `json:"span_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether nobody is waiting for the command's result anymore.
func (c Command) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func CommandStreamName(prefix, sessionID string) string {
	return fmt.Sprintf("%s%s", prefix, sessionID)
}
