package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrSessionInvalid = errors.New("session invalid or expired")

const DefaultSessionTTL = 24 * time.Hour

type session struct {
	token     string
	userID    string
	expiresAt time.Time
}

// Sessions issues and resolves HMAC-signed session cookies. The token
// lives server side; the cookie carries token.signature so a forged or
// tampered cookie fails before any lookup.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	byToken map[string]*session
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	return &Sessions{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		byToken: make(map[string]*session),
	}
}

// Issue starts a session for userID and returns the cookie value.
func (s *Sessions) Issue(userID string) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.purgeExpiredUnderLock()
	s.byToken[token] = &session{
		token:     token,
		userID:    userID,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token + "." + s.sign(token)
}

// Resolve validates a cookie value and returns the session's user ID.
// A valid hit slides the expiry forward.
func (s *Sessions) Resolve(cookie string) (string, error) {
	token, ok := s.verify(cookie)
	if !ok {
		return "", errors.Wrap(ErrSessionInvalid, "bad signature")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return "", errors.Wrap(ErrSessionInvalid, "unknown token")
	}

	if s.now().After(sess.expiresAt) {
		delete(s.byToken, token)
		return "", errors.Wrap(ErrSessionInvalid, "expired")
	}

	sess.expiresAt = s.now().Add(s.ttl)
	return sess.userID, nil
}

// Revoke forgets the session behind a cookie value, if any.
func (s *Sessions) Revoke(cookie string) {
	token, ok := s.verify(cookie)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}

func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

func (s *Sessions) sign(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Sessions) verify(cookie string) (string, bool) {
	i := strings.LastIndexByte(cookie, '.')
	if i <= 0 || i == len(cookie)-1 {
		return "", false
	}

	token, sig := cookie[:i], cookie[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(token))) {
		return "", false
	}

	return token, true
}

func (s *Sessions) purgeExpiredUnderLock() {
	now := s.now()
	for token, sess := range s.byToken {
		if now.After(sess.expiresAt) {
			delete(s.byToken, token)
		}
	}
}
