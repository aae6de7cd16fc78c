package dto

import "longevity-chat-be/internal/entity"

type AgentChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionId string `json:"sessionId"`
}

type AgentChatResponse struct {
	Output    string            `json:"output"`
	Artifacts []entity.Artifact `json:"artifacts"`
	ToolsUsed []string          `json:"toolsUsed"`
}
