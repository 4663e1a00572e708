package model

import "time"

// Thread is one persisted conversation, owned by the browser session that
// started it.
type Thread struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadUpdate is a partial thread update. Nil fields are left unchanged.
type ThreadUpdate struct {
	ID        string     `json:"id"`
	Title     *string    `json:"title,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Apply returns t with the non-nil fields of u applied.
func (u ThreadUpdate) Apply(t Thread) Thread {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.UpdatedAt != nil && u.UpdatedAt.After(t.UpdatedAt) {
		t.UpdatedAt = *u.UpdatedAt
	}
	return t
}

// MessageContext is a snapshot of the page the user was on when sending.
type MessageContext struct {
	Title   string `json:"title"`
	Favicon string `json:"favicon,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Conversation role constants.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn within a thread. Messages are treated as immutable
// values: every change goes through the conversation reducer, which copies.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   Contents        `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	ThreadID  string          `json:"thread_id"`
	Complete  bool            `json:"complete"`
	Error     string          `json:"error,omitempty"`
	HasError  bool            `json:"has_error,omitempty"`
	Context   *MessageContext `json:"context,omitempty"`
	History   bool            `json:"history,omitempty"`
}

// Clone returns a shallow copy with its own content slice.
// Content items are shared until replaced.
func (m *Message) Clone() *Message {
	c := *m
	if m.Content != nil {
		c.Content = make(Contents, len(m.Content))
		copy(c.Content, m.Content)
	}
	return &c
}

// FunctionCalls returns the function calls of the message in emission order.
func (m *Message) FunctionCalls() []*FunctionCall {
	var calls []*FunctionCall
	for _, c := range m.Content {
		if fc, ok := c.(*FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

// FunctionCall returns the call with the given id.
func (m *Message) FunctionCall(callID string) (*FunctionCall, bool) {
	for _, fc := range m.FunctionCalls() {
		if fc.ID == callID {
			return fc, true
		}
	}
	return nil, false
}

// HasUnresolvedCalls reports whether any function call is still Idle or Pending.
func (m *Message) HasUnresolvedCalls() bool {
	for _, fc := range m.FunctionCalls() {
		if !fc.Status.Terminal() {
			return true
		}
	}
	return false
}

// ReadyToContinue reports whether the assistant turn can be sent back to the
// model: it is complete, it asked for at least one tool, and every call has a result.
func (m *Message) ReadyToContinue() bool {
	if m.Role != RoleAssistant || !m.Complete {
		return false
	}
	calls := m.FunctionCalls()
	if len(calls) == 0 {
		return false
	}
	for _, fc := range calls {
		if !fc.Status.Terminal() {
			return false
		}
	}
	return true
}

// Text concatenates every OutputText item.
func (m *Message) Text() string {
	var text string
	for _, c := range m.Content {
		if t, ok := c.(*OutputText); ok {
			text += t.Text
		}
	}
	return text
}
