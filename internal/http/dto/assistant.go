package dto

import (
	"time"

	"chatconnect.app/assistant/internal/model"
)

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

type FunctionResultRequest struct {
	CallID  string `json:"call_id" binding:"required"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  string `json:"result,omitempty"`
}

func (r FunctionResultRequest) ToModel() model.FunctionResult {
	return model.FunctionResult{Success: r.Success, Error: r.Error, Result: r.Result}
}

type ExecuteFunctionCallsRequest struct {
	CallIDs []string `json:"call_ids" binding:"required,min=1"`
}

type PageResultRequest struct {
	CommandID string `json:"command_id" binding:"required"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result,omitempty"`
	// TraceID and SpanID echo the command's so the result joins its trace.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

func (r PageResultRequest) ToModel() model.FunctionResult {
	return model.FunctionResult{Success: r.Success, Error: r.Error, Result: r.Result}
}

type NewThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

type ThreadResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ThreadListResponse struct {
	Threads []ThreadResponse `json:"threads"`
}

func ToThreadListResponse(threads []model.Thread) ThreadListResponse {
	out := ThreadListResponse{Threads: make([]ThreadResponse, len(threads))}
	for i, t := range threads {
		out.Threads[i] = ThreadResponse{ID: t.ID, Title: t.Title, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
	}
	return out
}
