package entity

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is a file produced by the agent during a turn. Messages
// reference artifacts by URL; they never own the bytes.
type Artifact struct {
	Id   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
	Url  string `json:"url"`
}

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	Artifacts     []Artifact
	Tools         []string
	CreatedAt     time.Time
}
