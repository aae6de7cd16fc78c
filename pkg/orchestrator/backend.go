package orchestrator

import (
	"context"
	"time"

	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/entity"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/repository/local"
	"longevity-chat-be/internal/service"

	"github.com/google/uuid"
)

// Backend is the storage side of the orchestrator: persisted rows for
// authenticated users, client-local entries for guests. The orchestrator
// picks one variant at construction and never mixes the two.
type Backend interface {
	CreateSession(ctx context.Context, title string) (string, error)
	RenameSession(ctx context.Context, sessionId, title string) error
	DeleteSession(ctx context.Context, sessionId string) error
	AppendMessage(ctx context.Context, sessionId, role, content string, artifacts []entity.Artifact, tools []string) (string, error)
}

type persistedBackend struct {
	svc    service.IChatService
	userId uuid.UUID
}

// NewPersistedBackend stores through the server-side chat service on behalf
// of one authenticated user.
func NewPersistedBackend(svc service.IChatService, userId uuid.UUID) Backend {
	return &persistedBackend{svc: svc, userId: userId}
}

func (b *persistedBackend) CreateSession(ctx context.Context, title string) (string, error) {
	res, err := b.svc.CreateSession(ctx, b.userId, title)
	if err != nil {
		return "", err
	}
	return res.Id.String(), nil
}

func (b *persistedBackend) RenameSession(ctx context.Context, sessionId, title string) error {
	id, err := uuid.Parse(sessionId)
	if err != nil {
		return apperror.InvalidArgument("invalid session id")
	}
	_, err = b.svc.RenameSession(ctx, b.userId, id, title)
	return err
}

func (b *persistedBackend) DeleteSession(ctx context.Context, sessionId string) error {
	id, err := uuid.Parse(sessionId)
	if err != nil {
		return apperror.InvalidArgument("invalid session id")
	}
	return b.svc.DeleteSession(ctx, b.userId, id)
}

func (b *persistedBackend) AppendMessage(ctx context.Context, sessionId, role, content string, artifacts []entity.Artifact, tools []string) (string, error) {
	id, err := uuid.Parse(sessionId)
	if err != nil {
		return "", apperror.InvalidArgument("invalid session id")
	}
	res, err := b.svc.AppendMessage(ctx, b.userId, id, &dto.AppendMessageRequest{
		Role:      role,
		Content:   content,
		Artifacts: artifacts,
		Tools:     tools,
	})
	if err != nil {
		return "", err
	}
	return res.Id.String(), nil
}

type localBackend struct {
	store *local.Store
}

// NewLocalBackend stores guest history in the client-local cache. Entries
// never reach the server.
func NewLocalBackend(store *local.Store) Backend {
	return &localBackend{store: store}
}

func (b *localBackend) CreateSession(ctx context.Context, title string) (string, error) {
	now := time.Now()
	session := local.Session{
		Id:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.store.SaveSession(session)
	return session.Id, nil
}

func (b *localBackend) RenameSession(ctx context.Context, sessionId, title string) error {
	if !b.store.RenameSession(sessionId, title) {
		return apperror.NotFound("session not found")
	}
	return nil
}

func (b *localBackend) DeleteSession(ctx context.Context, sessionId string) error {
	if !b.store.DeleteSession(sessionId) {
		return apperror.NotFound("session not found")
	}
	return nil
}

func (b *localBackend) AppendMessage(ctx context.Context, sessionId, role, content string, artifacts []entity.Artifact, tools []string) (string, error) {
	msg := local.Message{
		Id:        uuid.NewString(),
		SessionId: sessionId,
		Role:      role,
		Content:   content,
		Artifacts: artifacts,
		Tools:     tools,
		CreatedAt: time.Now(),
	}
	if !b.store.AppendMessage(msg) {
		return "", apperror.NotFound("session not found")
	}
	return msg.Id, nil
}
