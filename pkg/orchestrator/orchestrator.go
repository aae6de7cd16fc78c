package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"longevity-chat-be/internal/constant"
	"longevity-chat-be/internal/entity"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/logger"
	"longevity-chat-be/internal/repository/local"
	"longevity-chat-be/internal/service"
	"longevity-chat-be/pkg/agent"
	"longevity-chat-be/pkg/events"

	"github.com/google/uuid"
)

// Session is the orchestrator's view of one conversation. Unsynced marks an
// optimistic session whose backend create failed; it stays visible and
// usable but is not stored anywhere durable.
type Session struct {
	Id        string
	Title     string
	Preview   string
	Unsynced  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry of a session's view state. Pending marks the
// placeholder shown while a turn is in flight; Failed marks a placeholder
// that was resolved by an error instead of assistant output.
type Message struct {
	Id        string
	SessionId string
	Role      string
	Content   string
	Artifacts []entity.Artifact
	Tools     []string
	Pending   bool
	Failed    bool
	CreatedAt time.Time
}

// TurnSender is the gateway side of a send. *agent.Client satisfies it.
type TurnSender interface {
	SendTurn(ctx context.Context, message, sessionID string) (*agent.TurnResult, error)
}

// IdentityResolver reports the authenticated user, if any. It mirrors the
// HTTP-side resolver: never errors, absent identity means guest.
type IdentityResolver func(ctx context.Context) (uuid.UUID, bool)

// Orchestrator drives the send lifecycle for one client: optimistic view
// updates, backend persistence, the agent call, and placeholder resolution.
// View state is guarded by a mutex; the agent call happens outside it, so
// sends against different sessions never block each other's views.
type Orchestrator struct {
	backend Backend
	sender  TurnSender
	log     logger.ILogger
	notify  func(message string)

	mu       sync.Mutex
	order    []string
	sessions map[string]*Session
	messages map[string][]*Message
	idMap    map[string]string // optimistic temp id -> backend id
	active   string
}

type Options struct {
	Backend Backend
	Sender  TurnSender
	Logger  logger.ILogger
	// Notify receives short transient notifications (failed sends). Optional.
	Notify func(message string)
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		backend:  opts.Backend,
		sender:   opts.Sender,
		log:      opts.Logger,
		notify:   opts.Notify,
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
		idMap:    make(map[string]string),
	}
}

// ForIdentity resolves the identity once, eagerly, and binds the matching
// backend: persisted rows for an authenticated user, client-local storage
// for a guest. Resolving up front avoids creating a throwaway guest session
// for a user whose credential simply had not been checked yet.
func ForIdentity(ctx context.Context, resolve IdentityResolver, svc service.IChatService, store *local.Store, opts Options) *Orchestrator {
	if userId, ok := resolve(ctx); ok {
		opts.Backend = NewPersistedBackend(svc, userId)
	} else {
		opts.Backend = NewLocalBackend(store)
	}
	return New(opts)
}

// resolveId follows the optimistic-id mapping so callers holding a temp id
// keep reaching the session after reconciliation.
func (o *Orchestrator) resolveId(id string) string {
	if real, ok := o.idMap[id]; ok {
		return real
	}
	return id
}

// Sessions returns the session list, most recently updated first.
func (o *Orchestrator) Sessions() []Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Session, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.sessions[id])
	}
	return out
}

// Messages returns a snapshot of one session's view state in append order.
func (o *Orchestrator) Messages(sessionId string) []Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.resolveId(sessionId)
	msgs := o.messages[id]
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}

// SetActive switches the displayed session. In-flight sends are not
// cancelled; their resolutions route by session id, not by this pointer.
func (o *Orchestrator) SetActive(sessionId string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = o.resolveId(sessionId)
}

func (o *Orchestrator) ActiveSession() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// NewSession creates a session explicitly (the "new session" action) and
// makes it active.
func (o *Orchestrator) NewSession(ctx context.Context, title string) (Session, error) {
	if title == "" {
		title = constant.DefaultSessionTitle
	}
	id, err := o.backend.CreateSession(ctx, title)
	if err != nil {
		return Session{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	session := &Session{Id: id, Title: title, CreatedAt: now, UpdatedAt: now}
	o.insertSession(session)
	o.active = id
	return *session, nil
}

func (o *Orchestrator) RenameSession(ctx context.Context, sessionId, title string) error {
	o.mu.Lock()
	id := o.resolveId(sessionId)
	session, ok := o.sessions[id]
	unsynced := ok && session.Unsynced
	o.mu.Unlock()

	if !ok {
		return apperror.NotFound("session not found")
	}
	if !unsynced {
		if err := o.backend.RenameSession(ctx, id, title); err != nil {
			return err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if session, ok := o.sessions[id]; ok {
		session.Title = title
		session.UpdatedAt = time.Now()
	}
	return nil
}

// DeleteSession removes the session from the backend and drops its view
// state. The session is closed: later sends against its id fail.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionId string) error {
	o.mu.Lock()
	id := o.resolveId(sessionId)
	session, ok := o.sessions[id]
	unsynced := ok && session.Unsynced
	o.mu.Unlock()

	if !ok {
		return apperror.NotFound("session not found")
	}
	if !unsynced {
		if err := o.backend.DeleteSession(ctx, id); err != nil {
			return err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropSession(id)
	return nil
}

// Send runs one chat turn against the active session, creating one first
// when none is active. The user message and a pending assistant placeholder
// appear immediately; persistence and the agent call follow. The placeholder
// resolution routes by session id, so switching the active session mid-send
// never misdirects the update.
func (o *Orchestrator) Send(ctx context.Context, content string) (*Message, error) {
	if content == "" {
		return nil, apperror.InvalidArgument("message must not be empty")
	}

	sessionId := o.ensureSession(ctx, content)

	o.mu.Lock()
	now := time.Now()
	userMsg := &Message{
		Id:        uuid.NewString(),
		SessionId: sessionId,
		Role:      constant.ChatMessageRoleUser,
		Content:   content,
		CreatedAt: now,
	}
	placeholder := &Message{
		Id:        uuid.NewString(),
		SessionId: sessionId,
		Role:      constant.ChatMessageRoleAssistant,
		Pending:   true,
		CreatedAt: now,
	}
	o.messages[sessionId] = append(o.messages[sessionId], userMsg, placeholder)
	if session, ok := o.sessions[sessionId]; ok {
		session.Preview = content
		session.UpdatedAt = now
		o.touchSession(sessionId)
	}
	unsynced := o.sessions[sessionId] != nil && o.sessions[sessionId].Unsynced
	o.mu.Unlock()

	// Persist the user message without holding up the agent call. An
	// unsynced session has no backend row to append to.
	if !unsynced {
		go func() {
			if _, err := o.backend.AppendMessage(context.Background(), sessionId, userMsg.Role, userMsg.Content, nil, nil); err != nil {
				o.log.Warn("orchestrator", "Failed to persist user message", map[string]interface{}{
					"session_id": sessionId,
					"error":      err.Error(),
				})
			}
		}()
	}

	o.deriveTitleOnce(ctx, sessionId, content)

	result, err := o.sender.SendTurn(ctx, content, sessionId)
	if err != nil {
		o.resolveFailure(sessionId, placeholder.Id, err)
		return nil, err
	}

	resolved := o.resolveSuccess(sessionId, placeholder.Id, result)

	if !unsynced {
		if _, err := o.backend.AppendMessage(ctx, sessionId, resolved.Role, resolved.Content, resolved.Artifacts, resolved.Tools); err != nil {
			o.log.Warn("orchestrator", "Failed to persist assistant message", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
	}
	return &resolved, nil
}

// ensureSession returns the active session id, creating an optimistic
// session when none is active. The optimistic entry shows up immediately
// under a temp id; the backend id replaces it once the create lands. A
// failed create degrades silently: the session stays visible, unsynced.
func (o *Orchestrator) ensureSession(ctx context.Context, firstMessage string) string {
	o.mu.Lock()
	if o.active != "" {
		id := o.active
		o.mu.Unlock()
		return id
	}

	tempId := fmt.Sprintf("temp-%d", time.Now().UnixMilli())
	now := time.Now()
	o.insertSession(&Session{
		Id:        tempId,
		Title:     constant.DefaultSessionTitle,
		CreatedAt: now,
		UpdatedAt: now,
	})
	o.active = tempId
	o.mu.Unlock()

	realId, err := o.backend.CreateSession(ctx, constant.DefaultSessionTitle)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.log.Warn("orchestrator", "Failed to create session", map[string]interface{}{
			"temp_id": tempId,
			"error":   err.Error(),
		})
		if session, ok := o.sessions[tempId]; ok {
			session.Unsynced = true
		}
		return tempId
	}
	o.reconcileId(tempId, realId)
	return realId
}

// reconcileId re-keys all view state from the optimistic temp id to the
// backend-issued id and records the mapping for callers still holding the
// temp id. Caller holds the lock.
func (o *Orchestrator) reconcileId(tempId, realId string) {
	session, ok := o.sessions[tempId]
	if !ok {
		return
	}
	session.Id = realId
	delete(o.sessions, tempId)
	o.sessions[realId] = session

	if msgs, ok := o.messages[tempId]; ok {
		for _, m := range msgs {
			m.SessionId = realId
		}
		delete(o.messages, tempId)
		o.messages[realId] = msgs
	}

	for i, id := range o.order {
		if id == tempId {
			o.order[i] = realId
		}
	}
	o.idMap[tempId] = realId
	if o.active == tempId {
		o.active = realId
	}
}

// deriveTitleOnce rewrites the default title from the first user message.
// The default-title check makes this a once-per-session transition.
func (o *Orchestrator) deriveTitleOnce(ctx context.Context, sessionId, content string) {
	o.mu.Lock()
	session, ok := o.sessions[sessionId]
	if !ok || session.Title != constant.DefaultSessionTitle {
		o.mu.Unlock()
		return
	}
	title := DeriveTitle(content)
	session.Title = title
	unsynced := session.Unsynced
	o.mu.Unlock()

	if unsynced {
		return
	}
	if err := o.backend.RenameSession(ctx, sessionId, title); err != nil {
		o.log.Warn("orchestrator", "Failed to persist derived title", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) resolveSuccess(sessionId, placeholderId string, result *agent.TurnResult) Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.resolveId(sessionId)
	msg := o.findMessage(id, placeholderId)
	if msg == nil {
		// Session was deleted mid-send; nothing to resolve.
		return Message{SessionId: id, Role: constant.ChatMessageRoleAssistant, Content: result.Output, Artifacts: result.Artifacts, Tools: result.ToolsUsed}
	}
	msg.Content = result.Output
	msg.Artifacts = result.Artifacts
	msg.Tools = result.ToolsUsed
	msg.Pending = false
	return *msg
}

// resolveFailure replaces the placeholder with a terminal failure entry.
// Failed turns are never persisted as assistant messages.
func (o *Orchestrator) resolveFailure(sessionId, placeholderId string, cause error) {
	text := failureText(cause)

	o.mu.Lock()
	id := o.resolveId(sessionId)
	if msg := o.findMessage(id, placeholderId); msg != nil {
		msg.Content = text
		msg.Pending = false
		msg.Failed = true
	}
	o.mu.Unlock()

	if o.notify != nil {
		o.notify(text)
	}
}

func failureText(err error) string {
	switch {
	case apperror.IsCode(err, apperror.CodeTimeout):
		return "The assistant took too long to respond. Please try again."
	case apperror.IsCode(err, apperror.CodeBadGateway):
		return "The assistant is unavailable right now. Please try again."
	default:
		return "Something went wrong sending your message."
	}
}

// findMessage locates a view entry by session and message id. Caller holds
// the lock.
func (o *Orchestrator) findMessage(sessionId, messageId string) *Message {
	for _, m := range o.messages[sessionId] {
		if m.Id == messageId {
			return m
		}
	}
	return nil
}

// insertSession puts the session at the front of the order. Caller holds
// the lock.
func (o *Orchestrator) insertSession(session *Session) {
	o.sessions[session.Id] = session
	o.order = append([]string{session.Id}, o.order...)
}

// touchSession moves the session to the front of the order. Caller holds
// the lock.
func (o *Orchestrator) touchSession(id string) {
	for i, existing := range o.order {
		if existing == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	o.order = append([]string{id}, o.order...)
}

// dropSession removes all view state for the session. Caller holds the lock.
func (o *Orchestrator) dropSession(id string) {
	delete(o.sessions, id)
	delete(o.messages, id)
	for i, existing := range o.order {
		if existing == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	if o.active == id {
		o.active = ""
	}
}

// Listen applies chat lifecycle events from the bus to the view state, so
// renames and deletes made elsewhere (another tab, the HTTP surface) show
// up without a refetch. It blocks until ctx is done.
func (o *Orchestrator) Listen(ctx context.Context, bus *events.Bus) error {
	ch, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for event := range ch {
		sessionId, _ := event.Data["session_id"].(string)
		if sessionId == "" {
			continue
		}

		o.mu.Lock()
		id := o.resolveId(sessionId)
		switch event.Type {
		case events.TypeSessionRenamed:
			if session, ok := o.sessions[id]; ok {
				if title, ok := event.Data["title"].(string); ok && title != "" {
					session.Title = title
					session.UpdatedAt = event.OccurredAt
				}
			}
		case events.TypeSessionDeleted:
			o.dropSession(id)
		}
		o.mu.Unlock()
	}
	return nil
}
