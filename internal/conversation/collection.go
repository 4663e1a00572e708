// Package conversation holds the pure reducer over a thread's message list.
//
// Every operation returns a new Collection and never mutates its input.
// Messages and content items that an operation does not touch keep their
// pointer identity, so observers can compare by reference to find changes.
// An operation whose target does not exist returns the input unchanged.
package conversation

import "chatconnect.app/assistant/internal/model"

// Collection is the message list of the active thread plus its load state.
type Collection struct {
	List    []*model.Message `json:"list"`
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
	Ready   bool             `json:"ready"`
}

// New returns an empty collection ready for a fresh thread.
func New() Collection {
	return Collection{List: []*model.Message{}, Ready: true}
}

// Loading returns an empty collection marked as loading.
func Loading() Collection {
	return Collection{List: []*model.Message{}, Loading: true}
}

// Loaded returns a ready collection holding list.
func Loaded(list []*model.Message) Collection {
	if list == nil {
		list = []*model.Message{}
	}
	return Collection{List: list, Ready: true}
}

// Failed returns the known-empty, non-loading, errored state.
func Failed(err any) Collection {
	return Collection{List: []*model.Message{}, Error: ErrorString(err)}
}

// Find returns the message with the given id.
func Find(c Collection, messageID string) (*model.Message, bool) {
	if i := indexOf(c, messageID); i >= 0 {
		return c.List[i], true
	}
	return nil, false
}

// LatestAssistant returns the last assistant message, if any.
func LatestAssistant(c Collection) (*model.Message, bool) {
	for i := len(c.List) - 1; i >= 0; i-- {
		if c.List[i].Role == model.RoleAssistant {
			return c.List[i], true
		}
	}
	return nil, false
}

func indexOf(c Collection, messageID string) int {
	for i, m := range c.List {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}

// update replaces the message with the given id by fn's result.
// fn returns its argument to signal no change.
func update(c Collection, messageID string, fn func(*model.Message) *model.Message) Collection {
	i := indexOf(c, messageID)
	if i < 0 {
		return c
	}
	next := fn(c.List[i])
	if next == c.List[i] {
		return c
	}
	list := make([]*model.Message, len(c.List))
	copy(list, c.List)
	list[i] = next

	out := c
	out.List = list
	return out
}

func contentIndex(m *model.Message, contentID string) int {
	for i, item := range m.Content {
		if item.ContentID() == contentID {
			return i
		}
	}
	return -1
}
