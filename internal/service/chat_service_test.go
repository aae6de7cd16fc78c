package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"longevity-chat-be/internal/constant"
	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/entity"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/logger"
	"longevity-chat-be/internal/repository/contract"
	"longevity-chat-be/internal/repository/specification"
	"longevity-chat-be/internal/repository/unitofwork"
	"longevity-chat-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repositories that interpret the query specifications the
// service actually uses.

type fakeSessionRepo struct {
	rows map[uuid.UUID]*entity.ChatSession
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *entity.ChatSession) error {
	copied := *s
	r.rows[s.Id] = &copied
	return nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, s *entity.ChatSession) error {
	copied := *s
	r.rows[s.Id] = &copied
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.rows, id)
	return nil
}

func sessionMatches(s *entity.ChatSession, specs []specification.Specification) bool {
	for _, sp := range specs {
		switch v := sp.(type) {
		case specification.ByID:
			if s.Id != v.ID {
				return false
			}
		case specification.UserOwnedBy:
			if s.UserId != v.UserID {
				return false
			}
		}
	}
	return true
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	for _, s := range r.rows {
		if sessionMatches(s, specs) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	var out []*entity.ChatSession
	for _, s := range r.rows {
		if sessionMatches(s, specs) {
			copied := *s
			out = append(out, &copied)
		}
	}
	for _, sp := range specs {
		if order, ok := sp.(specification.OrderBy); ok && order.Field == "updated_at" {
			sort.Slice(out, func(i, j int) bool {
				if order.Desc {
					return out[i].UpdatedAt.After(out[j].UpdatedAt)
				}
				return out[i].UpdatedAt.Before(out[j].UpdatedAt)
			})
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	rows, _ := r.FindAll(ctx, specs...)
	return int64(len(rows)), nil
}

type fakeMessageRepo struct {
	rows []*entity.ChatMessage
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *entity.ChatMessage) error {
	copied := *m
	r.rows = append(r.rows, &copied)
	return nil
}

func (r *fakeMessageRepo) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	kept := r.rows[:0]
	for _, m := range r.rows {
		if m.ChatSessionId != sessionId {
			kept = append(kept, m)
		}
	}
	r.rows = kept
	return nil
}

func messageMatches(m *entity.ChatMessage, specs []specification.Specification) bool {
	for _, sp := range specs {
		if v, ok := sp.(specification.ByChatSessionID); ok && m.ChatSessionId != v.ChatSessionID {
			return false
		}
	}
	return true
}

func (r *fakeMessageRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	for _, m := range r.rows {
		if messageMatches(m, specs) {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var out []*entity.ChatMessage
	for _, m := range r.rows {
		if messageMatches(m, specs) {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	rows, _ := r.FindAll(ctx, specs...)
	return int64(len(rows)), nil
}

type fakeUserRepo struct{}

func (r *fakeUserRepo) Create(ctx context.Context, u *entity.User) error { return nil }
func (r *fakeUserRepo) Update(ctx context.Context, u *entity.User) error { return nil }
func (r *fakeUserRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	return nil, nil
}

type fakeUow struct {
	sessions *fakeSessionRepo
	messages *fakeMessageRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) UserRepository() contract.UserRepository               { return &fakeUserRepo{} }
func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository { return u.sessions }
func (u *fakeUow) ChatMessageRepository() contract.ChatMessageRepository { return u.messages }

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

func newTestChatService() (IChatService, *fakeUow) {
	uow := &fakeUow{
		sessions: &fakeSessionRepo{rows: make(map[uuid.UUID]*entity.ChatSession)},
		messages: &fakeMessageRepo{},
	}
	svc := NewChatService(&fakeFactory{uow: uow}, events.NewBus(), logger.NewNopLogger())
	return svc, uow
}

func TestCreateSessionDefaultsTitle(t *testing.T) {
	svc, _ := newTestChatService()
	userId := uuid.New()

	created, err := svc.CreateSession(context.Background(), userId, "   ")
	require.NoError(t, err)
	assert.Equal(t, constant.DefaultSessionTitle, created.Title)

	titled, err := svc.CreateSession(context.Background(), userId, "Rapamycin dosing")
	require.NoError(t, err)
	assert.Equal(t, "Rapamycin dosing", titled.Title)
}

func TestListSessionsOrderedByRecency(t *testing.T) {
	svc, uow := newTestChatService()
	userId := uuid.New()

	older, err := svc.CreateSession(context.Background(), userId, "Older")
	require.NoError(t, err)
	newer, err := svc.CreateSession(context.Background(), userId, "Newer")
	require.NoError(t, err)

	// Push the second session's recency forward explicitly.
	row := uow.sessions.rows[newer.Id]
	row.UpdatedAt = time.Now().Add(time.Hour)

	// Sessions of other users never show up.
	_, err = svc.CreateSession(context.Background(), uuid.New(), "Foreign")
	require.NoError(t, err)

	sessions, err := svc.ListSessions(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.Id, sessions[0].Id)
	assert.Equal(t, older.Id, sessions[1].Id)
}

func TestRenameSessionValidation(t *testing.T) {
	svc, _ := newTestChatService()
	owner := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, "Mine")
	require.NoError(t, err)

	_, err = svc.RenameSession(context.Background(), owner, created.Id, "  ")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))

	_, err = svc.RenameSession(context.Background(), owner, uuid.New(), "Anything")
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	_, err = svc.RenameSession(context.Background(), uuid.New(), created.Id, "Stolen")
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	renamed, err := svc.RenameSession(context.Background(), owner, created.Id, "Updated")
	require.NoError(t, err)
	assert.Equal(t, "Updated", renamed.Title)
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	svc, uow := newTestChatService()
	owner := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, "Doomed")
	require.NoError(t, err)
	_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{
		Role: "user", Content: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(context.Background(), owner, created.Id))
	assert.Empty(t, uow.messages.rows)

	// A second delete reports the session as gone.
	err = svc.DeleteSession(context.Background(), owner, created.Id)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}

func TestAppendMessageValidation(t *testing.T) {
	svc, _ := newTestChatService()
	owner := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, "Chat")
	require.NoError(t, err)

	_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{Role: "system", Content: "x"})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))

	_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{Role: "user", Content: "  "})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))

	_, err = svc.AppendMessage(context.Background(), uuid.New(), created.Id, &dto.AppendMessageRequest{Role: "user", Content: "hi"})
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}

func TestAppendMessageTouchesSession(t *testing.T) {
	svc, uow := newTestChatService()
	owner := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, "Chat")
	require.NoError(t, err)

	// Age the session so the append visibly refreshes it.
	uow.sessions.rows[created.Id].UpdatedAt = time.Now().Add(-time.Hour)
	before := uow.sessions.rows[created.Id].UpdatedAt

	_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{Role: "user", Content: "hi"})
	require.NoError(t, err)

	assert.True(t, uow.sessions.rows[created.Id].UpdatedAt.After(before))
}

func TestListMessagesInCreationOrder(t *testing.T) {
	svc, _ := newTestChatService()
	owner := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, "Chat")
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{Role: "user", Content: content})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	msgs, err := svc.ListMessages(context.Background(), owner, created.Id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestListSessionArtifactsDedupes(t *testing.T) {
	svc, _ := newTestChatService()
	owner := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, "Chat")
	require.NoError(t, err)

	plot := entity.Artifact{Id: "plot-1", Name: "km.png", Type: "image/png"}
	report := entity.Artifact{Id: "report-1", Name: "report.pdf", Type: "application/pdf"}

	_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{
		Role: "assistant", Content: "here", Artifacts: []entity.Artifact{plot},
	})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = svc.AppendMessage(context.Background(), owner, created.Id, &dto.AppendMessageRequest{
		Role: "assistant", Content: "again", Artifacts: []entity.Artifact{plot, report},
	})
	require.NoError(t, err)

	artifacts, err := svc.ListSessionArtifacts(context.Background(), owner, created.Id)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "plot-1", artifacts[0].Id)
	assert.Equal(t, "report-1", artifacts[1].Id)
}
