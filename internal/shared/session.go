package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionManager reads cookie based sessions backed by Redis. Sessions
// are written by the identity provider; this service only needs to
// resolve the caller identity per request.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

func (sm *SessionManager) redisKey(id string) string {
	return "meridian:session:" + id
}

// Load resolves the caller identity for a request. A missing cookie or
// an expired session yields the zero identity, not an error.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (Identity, error) {
	if sm == nil || sm.client == nil {
		return Identity{}, errors.New("shared: session manager not initialised")
	}
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return Identity{}, nil
		}
		return Identity{}, err
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, nil
		}
		return Identity{}, err
	}
	var identity Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Save stores an identity and issues the session cookie. Primarily used
// by tests and tooling; production sessions come from the identity
// provider sharing the same store.
func (sm *SessionManager) Save(ctx context.Context, w http.ResponseWriter, identity Identity) (string, error) {
	if sm == nil || sm.client == nil {
		return "", errors.New("shared: session manager not initialised")
	}
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	if err := sm.client.Set(ctx, sm.redisKey(id), payload, sm.ttl).Err(); err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.ttl / time.Second),
	})
	return id, nil
}

// Destroy removes a session from the store.
func (sm *SessionManager) Destroy(ctx context.Context, id string) error {
	if sm == nil || sm.client == nil {
		return errors.New("shared: session manager not initialised")
	}
	return sm.client.Del(ctx, sm.redisKey(id)).Err()
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
