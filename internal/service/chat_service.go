package service

import (
	"context"
	"strings"
	"time"

	"longevity-chat-be/internal/constant"
	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/entity"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/logger"
	"longevity-chat-be/internal/repository/specification"
	"longevity-chat-be/internal/repository/unitofwork"
	"longevity-chat-be/pkg/events"

	"github.com/google/uuid"
)

// IChatService owns persisted chat sessions and their messages. All
// operations check ownership against the resolved identity; guest history
// never reaches this service.
type IChatService interface {
	ListSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error)
	CreateSession(ctx context.Context, userId uuid.UUID, title string) (*dto.SessionResponse, error)
	RenameSession(ctx context.Context, userId, sessionId uuid.UUID, title string) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, userId, sessionId uuid.UUID) error
	ListMessages(ctx context.Context, userId, sessionId uuid.UUID) ([]*dto.MessageResponse, error)
	AppendMessage(ctx context.Context, userId, sessionId uuid.UUID, req *dto.AppendMessageRequest) (*dto.MessageResponse, error)
	ListSessionArtifacts(ctx context.Context, userId, sessionId uuid.UUID) ([]entity.Artifact, error)
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	bus        *events.Bus
	log        logger.ILogger
}

func NewChatService(uowFactory unitofwork.RepositoryFactory, bus *events.Bus, log logger.ILogger) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		bus:        bus,
		log:        log,
	}
}

// verifySession loads the session and enforces ownership. The ownership
// check is on the session, never on individual messages.
func verifySession(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	sess, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if sess == nil {
		return nil, apperror.NotFound("session not found")
	}
	if sess.UserId != userId {
		return nil, apperror.Forbidden("session is owned by another user")
	}
	return sess, nil
}

func (cs *chatService) ListSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	response := make([]*dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, toSessionResponse(s))
	}
	return response, nil
}

func (cs *chatService) CreateSession(ctx context.Context, userId uuid.UUID, title string) (*dto.SessionResponse, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = constant.DefaultSessionTitle
	}

	now := time.Now()
	session := &entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, apperror.Internal(err)
	}

	if err := cs.bus.Publish(events.NewSessionCreated(session.Id.String(), session.Title)); err != nil {
		cs.log.Warn("chat", "Failed to publish session created event", map[string]interface{}{"error": err.Error()})
	}

	return toSessionResponse(session), nil
}

func (cs *chatService) RenameSession(ctx context.Context, userId, sessionId uuid.UUID, title string) (*dto.SessionResponse, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.InvalidArgument("title must not be empty")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	session.Title = title
	session.UpdatedAt = time.Now()
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return nil, apperror.Internal(err)
	}

	if err := cs.bus.Publish(events.NewSessionRenamed(session.Id.String(), session.Title)); err != nil {
		cs.log.Warn("chat", "Failed to publish session renamed event", map[string]interface{}{"error": err.Error()})
	}

	return toSessionResponse(session), nil
}

func (cs *chatService) DeleteSession(ctx context.Context, userId, sessionId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := verifySession(ctx, uow, userId, sessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Internal(err)
	}
	defer uow.Rollback()

	// Explicit cascade: child messages first, then the session row.
	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return apperror.Internal(err)
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionId); err != nil {
		return apperror.Internal(err)
	}

	if err := uow.Commit(); err != nil {
		return apperror.Internal(err)
	}

	if err := cs.bus.Publish(events.NewSessionDeleted(sessionId.String())); err != nil {
		cs.log.Warn("chat", "Failed to publish session deleted event", map[string]interface{}{"error": err.Error()})
	}

	return nil
}

func (cs *chatService) ListMessages(ctx context.Context, userId, sessionId uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := verifySession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	response := make([]*dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, toMessageResponse(m))
	}
	return response, nil
}

func (cs *chatService) AppendMessage(ctx context.Context, userId, sessionId uuid.UUID, req *dto.AppendMessageRequest) (*dto.MessageResponse, error) {
	if req.Role != constant.ChatMessageRoleUser && req.Role != constant.ChatMessageRoleAssistant {
		return nil, apperror.InvalidArgument("role must be user or assistant")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperror.InvalidArgument("content must not be empty")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	message := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Role:          req.Role,
		Content:       req.Content,
		Artifacts:     req.Artifacts,
		Tools:         req.Tools,
		CreatedAt:     now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.Internal(err)
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, message); err != nil {
		return nil, apperror.Internal(err)
	}

	// Appending touches the parent so the session list reflects recency.
	session.UpdatedAt = now
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return nil, apperror.Internal(err)
	}

	if err := uow.Commit(); err != nil {
		return nil, apperror.Internal(err)
	}

	if err := cs.bus.Publish(events.NewMessageAppended(sessionId.String(), message.Id.String(), message.Role)); err != nil {
		cs.log.Warn("chat", "Failed to publish message appended event", map[string]interface{}{"error": err.Error()})
	}

	return toMessageResponse(message), nil
}

// ListSessionArtifacts aggregates artifacts referenced by the session's
// messages, de-duplicated by artifact id in first-seen order.
func (cs *chatService) ListSessionArtifacts(ctx context.Context, userId, sessionId uuid.UUID) ([]entity.Artifact, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if _, err := verifySession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	seen := make(map[string]bool)
	artifacts := make([]entity.Artifact, 0)
	for _, m := range messages {
		for _, a := range m.Artifacts {
			if seen[a.Id] {
				continue
			}
			seen[a.Id] = true
			artifacts = append(artifacts, a)
		}
	}
	return artifacts, nil
}

func toSessionResponse(s *entity.ChatSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:        s.Id,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toMessageResponse(m *entity.ChatMessage) *dto.MessageResponse {
	return &dto.MessageResponse{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		Artifacts: m.Artifacts,
		Tools:     m.Tools,
		CreatedAt: m.CreatedAt,
	}
}
