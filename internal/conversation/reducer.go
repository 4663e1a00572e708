package conversation

import "chatconnect.app/assistant/internal/model"

const unknownError = "Unknown error"

// ErrorString normalizes anything raised by a provider or tool into display text.
func ErrorString(err any) string {
	switch v := err.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return unknownError
	}
}

// AddMessage appends msg to the end of the list.
func AddMessage(c Collection, msg *model.Message) Collection {
	list := make([]*model.Message, len(c.List), len(c.List)+1)
	copy(list, c.List)

	out := c
	out.List = append(list, msg)
	return out
}

// AddMessageContent appends content to the message.
func AddMessageContent(c Collection, messageID string, content model.Content) Collection {
	return update(c, messageID, func(m *model.Message) *model.Message {
		next := m.Clone()
		next.Content = append(next.Content, content)
		return next
	})
}

// AppendTextDelta concatenates delta onto the OutputText with contentID,
// creating it when the message has no such content yet.
func AppendTextDelta(c Collection, messageID, contentID, delta string) Collection {
	return update(c, messageID, func(m *model.Message) *model.Message {
		i := contentIndex(m, contentID)
		if i < 0 {
			next := m.Clone()
			next.Content = append(next.Content, &model.OutputText{ID: contentID, Text: delta})
			return next
		}
		text, ok := m.Content[i].(*model.OutputText)
		if !ok {
			return m
		}
		next := m.Clone()
		next.Content[i] = &model.OutputText{ID: text.ID, Text: text.Text + delta}
		return next
	})
}

// SetError marks the failed turn. hasError and the error text go on the
// assistant message when assistantMessageID names one in the list, otherwise
// on the user message.
func SetError(c Collection, err any, userMessageID, assistantMessageID string) Collection {
	target := userMessageID
	if assistantMessageID != "" && indexOf(c, assistantMessageID) >= 0 {
		target = assistantMessageID
	}
	text := ErrorString(err)

	return update(c, target, func(m *model.Message) *model.Message {
		next := m.Clone()
		next.HasError = true
		next.Error = text
		return next
	})
}

// UpdateFunctionResult stores result on the call and moves it to Success or Error.
func UpdateFunctionResult(c Collection, messageID, callID string, result model.FunctionResult) Collection {
	return update(c, messageID, func(m *model.Message) *model.Message {
		i := contentIndex(m, callID)
		if i < 0 {
			return m
		}
		fc, ok := m.Content[i].(*model.FunctionCall)
		if !ok {
			return m
		}
		status := model.FunctionCallStatusError
		if result.Success {
			status = model.FunctionCallStatusSuccess
		}
		updated := *fc
		updated.Status = status
		updated.Result = &result

		next := m.Clone()
		next.Content[i] = &updated
		return next
	})
}

// SetComplete marks the message complete. Completing twice is a no-op.
func SetComplete(c Collection, messageID string) Collection {
	return update(c, messageID, func(m *model.Message) *model.Message {
		if m.Complete {
			return m
		}
		next := m.Clone()
		next.Complete = true
		return next
	})
}

// SetMessageContext attaches the page snapshot taken at send time.
func SetMessageContext(c Collection, messageID string, ctx *model.MessageContext) Collection {
	if ctx == nil {
		return c
	}
	return update(c, messageID, func(m *model.Message) *model.Message {
		next := m.Clone()
		next.Context = ctx
		return next
	})
}

// UpsertFunctionCall replaces the call with the same id or appends it.
// A call that already reached a terminal status keeps its status and result.
func UpsertFunctionCall(c Collection, messageID string, call *model.FunctionCall) Collection {
	return update(c, messageID, func(m *model.Message) *model.Message {
		incoming := *call
		if incoming.Status == "" {
			incoming.Status = model.FunctionCallStatusIdle
		}

		i := contentIndex(m, call.ID)
		if i < 0 {
			next := m.Clone()
			next.Content = append(next.Content, &incoming)
			return next
		}
		existing, ok := m.Content[i].(*model.FunctionCall)
		if !ok {
			return m
		}
		if existing.Status.Terminal() || (existing.Status == model.FunctionCallStatusPending && !incoming.Status.Terminal()) {
			incoming.Status = existing.Status
			incoming.Result = existing.Result
		}
		next := m.Clone()
		next.Content[i] = &incoming
		return next
	})
}

// MarkFunctionCallPending moves an Idle call to Pending. Any other status is left alone.
func MarkFunctionCallPending(c Collection, messageID, callID string) Collection {
	return update(c, messageID, func(m *model.Message) *model.Message {
		i := contentIndex(m, callID)
		if i < 0 {
			return m
		}
		fc, ok := m.Content[i].(*model.FunctionCall)
		if !ok || fc.Status != model.FunctionCallStatusIdle {
			return m
		}
		updated := *fc
		updated.Status = model.FunctionCallStatusPending

		next := m.Clone()
		next.Content[i] = &updated
		return next
	})
}
