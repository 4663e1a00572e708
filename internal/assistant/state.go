package assistant

import (
	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
)

type View string

const (
	ViewConversation View = "conversation"
	ViewHistory      View = "history"
)

// ThreadList is the thread history as last loaded from the store.
type ThreadList struct {
	List    []model.Thread `json:"list"`
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
	Ready   bool           `json:"ready"`
}

// State is everything the side panel renders. Values are never mutated in
// place, so a snapshot stays valid after later changes.
type State struct {
	ThreadID        string                  `json:"thread_id"`
	Messages        conversation.Collection `json:"messages"`
	Threads         ThreadList              `json:"threads"`
	WaitingForReply bool                    `json:"waiting_for_reply"`
	WaitingForTools bool                    `json:"waiting_for_tools"`
	View            View                    `json:"view"`
}
