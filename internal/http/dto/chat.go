package dto

import (
	"time"

	"fitpulse.app/coach/internal/model"
)

type SubmitMessageRequest struct {
	Message string `json:"message" binding:"required,min=1,max=4000"`
}

type ChatMessageResponse struct {
	ID           int64     `json:"id,string"`
	Message      string    `json:"message"`
	Response     *string   `json:"response,omitempty"`
	IsProcessing bool      `json:"is_processing"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToChatMessageResponse(m *model.ChatMessage) *ChatMessageResponse {
	return &ChatMessageResponse{
		ID:           m.ID,
		Message:      m.Message,
		Response:     m.Response,
		IsProcessing: m.IsProcessing,
		CreatedAt:    m.CreatedAt,
	}
}

type ListMessagesResponse struct {
	Messages []ChatMessageResponse `json:"messages"`
}

func ToListMessagesResponse(msgs []model.ChatMessage) ListMessagesResponse {
	out := ListMessagesResponse{Messages: make([]ChatMessageResponse, 0, len(msgs))}
	for i := range msgs {
		out.Messages = append(out.Messages, *ToChatMessageResponse(&msgs[i]))
	}
	return out
}
