package dto

import (
	"time"

	"longevity-chat-be/internal/entity"

	"github.com/google/uuid"
)

type SessionResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required"`
}

type MessageResponse struct {
	Id        uuid.UUID         `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Artifacts []entity.Artifact `json:"artifacts,omitempty"`
	Tools     []string          `json:"tools,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type AppendMessageRequest struct {
	Role      string            `json:"role" validate:"required,oneof=user assistant"`
	Content   string            `json:"content" validate:"required"`
	Artifacts []entity.Artifact `json:"artifacts,omitempty"`
	Tools     []string          `json:"tools,omitempty"`
}
