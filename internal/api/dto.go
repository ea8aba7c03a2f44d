package api

import (
	"time"

	"github.com/ChaseRain/pdf2deck/internal/service/gemini"
	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
)

type LoadDocumentRequest struct {
	DocumentBase64 string `json:"document_base64" binding:"required"`
	Name           string `json:"name"`
}

type DocumentResponse struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Pages    int    `json:"pages"`
	Size     int    `json:"size"`
}

type GenerateRequest struct {
	Instruction string `json:"instruction"`
	Stream      bool   `json:"stream"`
}

type SessionResponse struct {
	ID         string         `json:"id,omitempty"`
	Status     string         `json:"status"`
	Document   string         `json:"document,omitempty"`
	Slides     []gemini.Slide `json:"slides"`
	Error      *ErrorBody     `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type StreamEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	RunID string      `json:"run_id,omitempty"`
}

type EventStatus struct {
	Status   string         `json:"status"`
	Message  string         `json:"message"`
	Progress int            `json:"progress"`
	Slides   []gemini.Slide `json:"slides,omitempty"`
}

type EventImage struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
	orchestrator.ImageEvent
}

type EventComplete struct {
	Message string          `json:"message"`
	Session SessionResponse `json:"session"`
}

type EventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	EventTypeStatus   = "status"
	EventTypeImage    = "image"
	EventTypeComplete = "complete"
	EventTypeError    = "error"

	headerDeckURL = "X-Deck-URL"
)

func toSessionResponse(st orchestrator.State) SessionResponse {
	resp := SessionResponse{
		ID:       st.ID,
		Status:   string(st.Status),
		Document: st.Document,
		Slides:   st.Slides,
	}
	if resp.Slides == nil {
		resp.Slides = []gemini.Slide{}
	}
	if st.Status == orchestrator.StatusError {
		resp.Error = &ErrorBody{Code: st.ErrorCode, Message: st.Error}
	}
	if !st.StartedAt.IsZero() {
		t := st.StartedAt
		resp.StartedAt = &t
	}
	if !st.FinishedAt.IsZero() {
		t := st.FinishedAt
		resp.FinishedAt = &t
	}
	return resp
}
