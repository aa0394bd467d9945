package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"clientlookup/lookup"
)

const sessionCookieName = "gcid_session"

// Session binds a browser to the lookup it is looking at.
type Session struct {
	ID         string
	Controller *lookup.Controller
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// SessionStore keeps sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore constructs the store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Save stores or replaces a session.
func (s *SessionStore) Save(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Touch returns the live session for id and extends its expiry. An expired
// session is removed and its controller reset.
func (s *SessionStore) Touch(id string, now time.Time, ttl time.Duration) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if now.After(sess.ExpiresAt) {
		delete(s.sessions, id)
		s.mu.Unlock()
		_ = sess.Controller.Reset()
		return nil, false
	}
	// Sliding expiration: extend on activity.
	sess.ExpiresAt = now.Add(ttl)
	s.mu.Unlock()
	return sess, true
}

// DeleteExpired drops sessions whose expiry is before now and resets their
// controllers so in-flight lookups are cancelled.
func (s *SessionStore) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		_ = sess.Controller.Reset()
	}
	return len(expired)
}

// SessionManager handles cookie-backed sessions.
type SessionManager struct {
	store         *SessionStore
	logger        *slog.Logger
	ttl           time.Duration
	sweepInterval time.Duration
	secure        bool
	newController func() *lookup.Controller
	now           func() time.Time
}

// NewSessionManager constructs a session manager honouring config.
func NewSessionManager(cfg Config, store *SessionStore, newController func() *lookup.Controller, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		store:         store,
		logger:        logger,
		ttl:           cfg.Sessions.TTL,
		sweepInterval: cfg.Sessions.SweepInterval,
		secure:        !cfg.Server.DevMode,
		newController: newController,
		now:           time.Now,
	}
}

// Fetch returns the session associated with the request cookie if present.
func (sm *SessionManager) Fetch(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	sess, ok := sm.store.Touch(cookie.Value, sm.now(), sm.ttl)
	if !ok {
		return nil
	}
	return sess
}

// Ensure returns the request's session, creating one and setting the cookie
// when none is live.
func (sm *SessionManager) Ensure(w http.ResponseWriter, r *http.Request) *Session {
	if sess := sm.Fetch(r); sess != nil {
		sm.setCookie(w, sess.ID)
		return sess
	}

	now := sm.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Controller: sm.newController(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(sm.ttl),
	}
	sm.store.Save(sess)
	sm.setCookie(w, sess.ID)
	sm.logger.Debug("session created", "session_id", sess.ID)
	return sess
}

// StartSweeper removes expired sessions periodically until stop is closed.
func (sm *SessionManager) StartSweeper(stop <-chan struct{}) {
	ticker := time.NewTicker(sm.sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sm.store.DeleteExpired(sm.now()); n > 0 {
					sm.logger.Info("expired sessions removed", "count", n)
				}
			case <-stop:
				return
			}
		}
	}()
}

func (sm *SessionManager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.ttl.Seconds()),
	})
}
