package webapp

import (
	"strings"
	"sync"
	"time"

	"github.com/benelink/benelink-go/sdk/benelink"
)

const sessionTTL = 8 * time.Hour

// session tracks one browser's place in the authorization flow. Pending holds
// the PKCE material between the redirect to the authorization server and the
// callback; Source holds the credential after a successful exchange.
type session struct {
	Pending   *benelink.AuthData
	Source    *benelink.TokenSource
	Patient   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// sessionStore keeps browser sessions in memory, keyed by the session cookie
// value. Entries slide their expiry on every access and expired entries are
// purged opportunistically, so the store never needs a background janitor.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]session),
	}
}

func (s *sessionStore) purgeExpiredLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.IsZero() && now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

// upsertLocked returns the live session for id, creating it when absent, and
// slides its expiry window.
func (s *sessionStore) upsertLocked(id string, now time.Time) session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = session{CreatedAt: now}
	}
	sess.ExpiresAt = now.Add(s.ttl)
	return sess
}

// SetPending records freshly generated authorization data for the session.
// Any earlier pending flow for the same browser is replaced.
func (s *sessionStore) SetPending(id string, data *benelink.AuthData) {
	id = strings.TrimSpace(id)
	if id == "" || data == nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	sess := s.upsertLocked(id, now)
	sess.Pending = data
	s.sessions[id] = sess
}

// TakePending returns the session's pending authorization data and clears it,
// so a callback can only be consumed once.
func (s *sessionStore) TakePending(id string) *benelink.AuthData {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	sess, ok := s.sessions[id]
	if !ok || sess.Pending == nil {
		return nil
	}
	pending := sess.Pending
	sess.Pending = nil
	sess.ExpiresAt = now.Add(s.ttl)
	s.sessions[id] = sess
	return pending
}

// SetSource stores the session's credential source after a successful
// exchange.
func (s *sessionStore) SetSource(id string, source *benelink.TokenSource, patient string) {
	id = strings.TrimSpace(id)
	if id == "" || source == nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	sess := s.upsertLocked(id, now)
	sess.Source = source
	sess.Patient = patient
	s.sessions[id] = sess
}

// Source returns the session's credential source, or ok=false when the
// browser has not completed an authorization.
func (s *sessionStore) Source(id string) (*benelink.TokenSource, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	sess, ok := s.sessions[id]
	if !ok || sess.Source == nil {
		return nil, false
	}
	sess.ExpiresAt = now.Add(s.ttl)
	s.sessions[id] = sess
	return sess.Source, true
}

// Patient returns the patient identifier bound to the session's credential.
func (s *sessionStore) Patient(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(now)
	sess, ok := s.sessions[id]
	if !ok || sess.Source == nil {
		return "", false
	}
	return sess.Patient, true
}

// Delete removes the session entirely.
func (s *sessionStore) Delete(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}
