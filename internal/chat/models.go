package chat

import (
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/toolcall"
	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessageDTO struct {
	ID            uuid.UUID           `json:"id"`
	Role          string              `json:"role"`
	IsUser        bool                `json:"is_user"`
	Content       string              `json:"content"`
	ToolResponses []toolcall.Envelope `json:"tool_responses,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type SendMessageRequest struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Content   string    `json:"content"`
	// TimeZone — IANA зона клиента для границ "сегодня" и "эта неделя"; по умолчанию UTC.
	TimeZone string `json:"time_zone,omitempty"`
}

type SendMessageResponse struct {
	UserMessage      ChatMessageDTO `json:"user_message"`
	AssistantMessage ChatMessageDTO `json:"assistant_message"`
}

type ListMessagesResponse struct {
	Messages   []ChatMessageDTO `json:"messages"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

type TipResponse struct {
	Tip string `json:"tip"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// messageToDTO декодирует сохранённые команды; битый JSON даёт сообщение без команд.
func messageToDTO(msg storage.ChatMessage) ChatMessageDTO {
	cmds, _ := toolcall.UnmarshalCommands(msg.ToolCommands)
	return ChatMessageDTO{
		ID:            msg.ID,
		Role:          msg.Role,
		IsUser:        msg.Role == RoleUser,
		Content:       msg.Content,
		ToolResponses: toolcall.Envelopes(cmds),
		CreatedAt:     msg.CreatedAt,
	}
}
