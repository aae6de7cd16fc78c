package local

import (
	"sort"
	"strings"
	"sync"
	"time"

	"longevity-chat-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

const (
	sessionKeyPrefix  = "sess:"
	messagesKeyPrefix = "msgs:"
)

// Session mirrors the shape of the persisted session list for guests:
// an ordered sequence of {id, title, preview}.
type Session struct {
	Id        string
	Title     string
	Preview   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	Id        string
	SessionId string
	Role      string
	Content   string
	Artifacts []entity.Artifact
	Tools     []string
	CreatedAt time.Time
}

// Store holds chat history for anonymous visitors. It is the guest-side
// counterpart of the persisted repositories: same access rules, no owner
// column because entries are scoped to one client.
type Store struct {
	cache *cache.Cache
	mu    sync.Mutex // serializes read-modify-write on message slices
}

func NewStore() *Store {
	// Guest history expires after a day of inactivity; expired items are
	// purged every 10 minutes.
	c := cache.New(24*time.Hour, 10*time.Minute)
	return &Store{cache: c}
}

func (s *Store) SaveSession(session Session) {
	s.cache.Set(sessionKeyPrefix+session.Id, session, cache.DefaultExpiration)
}

func (s *Store) GetSession(id string) (Session, bool) {
	if x, found := s.cache.Get(sessionKeyPrefix + id); found {
		return x.(Session), true
	}
	return Session{}, false
}

// ListSessions returns all guest sessions ordered by UpdatedAt descending.
func (s *Store) ListSessions() []Session {
	var sessions []Session
	for key, item := range s.cache.Items() {
		if !strings.HasPrefix(key, sessionKeyPrefix) {
			continue
		}
		sessions = append(sessions, item.Object.(Session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}

// RenameSession returns false when the session does not exist.
func (s *Store) RenameSession(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, found := s.GetSession(id)
	if !found {
		return false
	}
	session.Title = title
	session.UpdatedAt = time.Now()
	s.SaveSession(session)
	return true
}

// DeleteSession removes the session and all its messages. Returns false
// when the session does not exist, so a second delete is a no-op.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.GetSession(id); !found {
		return false
	}
	// Messages go first, mirroring the persisted cascade order.
	s.cache.Delete(messagesKeyPrefix + id)
	s.cache.Delete(sessionKeyPrefix + id)
	return true
}

// AppendMessage stores the message and touches the parent session's
// UpdatedAt. Returns false when the session does not exist.
func (s *Store) AppendMessage(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, found := s.GetSession(msg.SessionId)
	if !found {
		return false
	}

	var msgs []Message
	if x, ok := s.cache.Get(messagesKeyPrefix + msg.SessionId); ok {
		msgs = x.([]Message)
	}
	msgs = append(msgs, msg)
	s.cache.Set(messagesKeyPrefix+msg.SessionId, msgs, cache.DefaultExpiration)

	session.UpdatedAt = msg.CreatedAt
	if msg.Role == "user" {
		session.Preview = msg.Content
	}
	s.SaveSession(session)
	return true
}

// ListMessages returns messages in append (creation) order. The second
// return is false when the session does not exist.
func (s *Store) ListMessages(sessionId string) ([]Message, bool) {
	if _, found := s.GetSession(sessionId); !found {
		return nil, false
	}
	if x, ok := s.cache.Get(messagesKeyPrefix + sessionId); ok {
		msgs := x.([]Message)
		out := make([]Message, len(msgs))
		copy(out, msgs)
		return out, true
	}
	return []Message{}, true
}
