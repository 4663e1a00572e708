package provider

import "chatconnect.app/assistant/internal/model"

// Event is a lifecycle notification emitted while a provider call runs.
// The set of events is closed; switches over Event must handle every type,
// which tools/linters/eventswitch enforces.
type Event interface {
	Thread() string
	isEvent()
}

// EventHandler receives events in emission order.
type EventHandler func(Event)

// Created announces a new, empty assistant message.
type Created struct {
	ThreadID  string
	MessageID string
}

type OutputTextDelta struct {
	ThreadID  string
	MessageID string
	ContentID string
	TextDelta string
}

// FunctionCallAdded announces a call whose arguments are still streaming.
type FunctionCallAdded struct {
	ThreadID  string
	MessageID string
	Content   *model.FunctionCall
}

// FunctionCallDone carries the finalized call.
type FunctionCallDone struct {
	ThreadID  string
	MessageID string
	Content   *model.FunctionCall
}

type Completed struct {
	ThreadID      string
	MessageID     string
	UserMessageID string
}

// Error reports a failure after streaming began. MessageID is empty when no
// assistant message was created.
type Error struct {
	ThreadID      string
	MessageID     string
	UserMessageID string
	Err           error
}

// Fallback delivers a whole assistant message at once.
type Fallback struct {
	ThreadID      string
	MessageID     string
	UserMessageID string
	Content       model.Contents
	HasTools      bool
}

func (e Created) Thread() string           { return e.ThreadID }
func (e OutputTextDelta) Thread() string   { return e.ThreadID }
func (e FunctionCallAdded) Thread() string { return e.ThreadID }
func (e FunctionCallDone) Thread() string  { return e.ThreadID }
func (e Completed) Thread() string         { return e.ThreadID }
func (e Error) Thread() string             { return e.ThreadID }
func (e Fallback) Thread() string          { return e.ThreadID }

func (Created) isEvent()           {}
func (OutputTextDelta) isEvent()   {}
func (FunctionCallAdded) isEvent() {}
func (FunctionCallDone) isEvent()  {}
func (Completed) isEvent()         {}
func (Error) isEvent()             {}
func (Fallback) isEvent()          {}
