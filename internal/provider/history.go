package provider

import (
	"encoding/json"

	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/internal/model"
)

var notExecuted = model.FunctionResult{Success: false, Error: "not executed"}

// toWire converts a conversation into chat messages. Every function call is
// answered by a tool message so the history stays valid for the API.
func toWire(instructions string, msgs []*model.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs)+1)
	if instructions != "" {
		out = append(out, llm.Message{Role: "system", Content: instructions})
	}

	for _, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			if text := m.Text(); text != "" {
				out = append(out, llm.Message{Role: "user", Content: text})
			}

		case model.RoleAssistant:
			calls := m.FunctionCalls()
			text := m.Text()
			if text == "" && len(calls) == 0 {
				continue
			}
			wire := llm.Message{Role: "assistant", Content: text}
			for _, fc := range calls {
				wire.ToolCalls = append(wire.ToolCalls, llm.ToolCall{ID: fc.ID, Name: fc.Name, Arguments: fc.Arguments})
			}
			out = append(out, wire)
			for _, fc := range calls {
				out = append(out, llm.Message{Role: "tool", ToolCallID: fc.ID, Content: toolOutput(fc)})
			}
		}
	}
	return out
}

func toolOutput(fc *model.FunctionCall) string {
	result := notExecuted
	if fc.Status.Terminal() && fc.Result != nil {
		result = *fc.Result
	}
	data, _ := json.Marshal(result)
	return string(data)
}

// fromResponse builds the content of a non-streamed answer.
func fromResponse(resp *llm.AgentResponse, newID func() string) model.Contents {
	var content model.Contents
	if resp.Content != "" {
		content = append(content, &model.OutputText{ID: newID(), Text: resp.Content})
	}
	for _, tc := range resp.ToolCalls {
		content = append(content, &model.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
			Status:    model.FunctionCallStatusIdle,
		})
	}
	return content
}
