package httpapi

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/socraticlab/recall/pkg/types"
)

const sessionCookie = "recall_session"

// Session is one browser's state: who they are, which project is active,
// and the last search to embed in the memory export.
type Session struct {
	ID         string
	UserID     string
	ProjectID  *uuid.UUID
	LastSearch *types.SearchResponse
}

// SessionManager holds sessions in memory, keyed by cookie.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Get returns the request's session, or nil when there is none.
func (m *SessionManager) Get(c *fiber.Ctx) *Session {
	id := c.Cookies(sessionCookie)
	if id == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Start creates a session for the user and sets the cookie.
func (m *SessionManager) Start(c *fiber.Ctx, userID string) *Session {
	s := &Session{ID: uuid.NewString(), UserID: userID}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return s
}

// End removes the request's session and clears the cookie.
func (m *SessionManager) End(c *fiber.Ctx) {
	id := c.Cookies(sessionCookie)
	if id != "" {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}
	c.ClearCookie(sessionCookie)
}
