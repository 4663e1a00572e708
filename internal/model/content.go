package model

import (
	"encoding/json"
	"fmt"
)

type ContentType string

const (
	ContentTypeOutputText   ContentType = "output_text"
	ContentTypeFunctionCall ContentType = "function_call"
	ContentTypeReasoning    ContentType = "reasoning"
)

// Content is an addressable item inside a message. The set of implementations
// is closed: OutputText, FunctionCall and Reasoning.
type Content interface {
	ContentID() string
	Type() ContentType
	isContent()
}

type OutputText struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (c *OutputText) ContentID() string { return c.ID }
func (c *OutputText) Type() ContentType { return ContentTypeOutputText }
func (*OutputText) isContent()          {}

type FunctionCallStatus string

const (
	FunctionCallStatusIdle    FunctionCallStatus = "idle"
	FunctionCallStatusPending FunctionCallStatus = "pending"
	FunctionCallStatusSuccess FunctionCallStatus = "success"
	FunctionCallStatusError   FunctionCallStatus = "error"
)

// Terminal reports whether no further transition is allowed.
func (s FunctionCallStatus) Terminal() bool {
	return s == FunctionCallStatusSuccess || s == FunctionCallStatusError
}

func (s FunctionCallStatus) IsValid() bool {
	switch s {
	case FunctionCallStatusIdle, FunctionCallStatusPending, FunctionCallStatusSuccess, FunctionCallStatusError:
		return true
	}
	return false
}

// FunctionResult is the outcome of one page operation.
type FunctionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  string `json:"result,omitempty"`
}

type FunctionCall struct {
	ID        string             `json:"id"`
	Status    FunctionCallStatus `json:"status"`
	Name      string             `json:"name"`
	Arguments string             `json:"arguments"`
	Result    *FunctionResult    `json:"result,omitempty"`
}

func (c *FunctionCall) ContentID() string { return c.ID }
func (c *FunctionCall) Type() ContentType { return ContentTypeFunctionCall }
func (*FunctionCall) isContent()          {}

type Reasoning struct {
	ID          string `json:"id"`
	SummaryText string `json:"summary_text"`
	DetailText  string `json:"detail_text,omitempty"`
	IsExpanded  bool   `json:"is_expanded,omitempty"`
}

func (c *Reasoning) ContentID() string { return c.ID }
func (c *Reasoning) Type() ContentType { return ContentTypeReasoning }
func (*Reasoning) isContent()          {}

// Contents is an ordered content list encoded as a tagged union:
// each element carries a "type" discriminator next to its fields.
type Contents []Content

func (cs Contents) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(cs))
	for _, c := range cs {
		raw, err := marshalContent(c)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (cs *Contents) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	result := make(Contents, 0, len(raws))
	for i, raw := range raws {
		c, err := unmarshalContent(raw)
		if err != nil {
			return fmt.Errorf("content %d: %w", i, err)
		}
		result = append(result, c)
	}
	*cs = result
	return nil
}

func marshalContent(c Content) (json.RawMessage, error) {
	switch v := c.(type) {
	case *OutputText:
		return json.Marshal(struct {
			Type ContentType `json:"type"`
			*OutputText
		}{ContentTypeOutputText, v})
	case *FunctionCall:
		return json.Marshal(struct {
			Type ContentType `json:"type"`
			*FunctionCall
		}{ContentTypeFunctionCall, v})
	case *Reasoning:
		return json.Marshal(struct {
			Type ContentType `json:"type"`
			*Reasoning
		}{ContentTypeReasoning, v})
	default:
		return nil, fmt.Errorf("unsupported content %T", c)
	}
}

func unmarshalContent(raw json.RawMessage) (Content, error) {
	var head struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	var c Content
	switch head.Type {
	case ContentTypeOutputText:
		c = &OutputText{}
	case ContentTypeFunctionCall:
		c = &FunctionCall{}
	case ContentTypeReasoning:
		c = &Reasoning{}
	default:
		return nil, fmt.Errorf("unknown content type %q", head.Type)
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return c, nil
}
