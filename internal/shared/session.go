package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoleAdmin may act on any warehouse; every other role is restricted to its
// home warehouse for destination-side transfer actions.
const RoleAdmin = "admin"

// Identity describes the authenticated caller resolved from a session token.
type Identity struct {
	UserID          int64  `json:"user_id"`
	Role            string `json:"role"`
	HomeWarehouseID int64  `json:"home_warehouse_id"`
}

// IsAdmin reports whether the identity carries the admin role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}

// CanActOn reports whether the identity may act on the given warehouse.
func (id *Identity) CanActOn(warehouseID int64) bool {
	if id == nil {
		return false
	}
	return id.IsAdmin() || id.HomeWarehouseID == warehouseID
}

// ErrSessionNotFound indicates the presented token has no backing session.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager resolves bearer tokens and session cookies against Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl}
}

// Resolve extracts the session token from the request and loads the identity.
// A request without any token resolves to (nil, nil).
func (sm *SessionManager) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	token := tokenFromRequest(r, sm.cookieName)
	if token == "" {
		return nil, nil
	}
	return sm.Load(ctx, token)
}

// Load fetches the identity stored for token, refreshing its TTL.
func (sm *SessionManager) Load(ctx context.Context, token string) (*Identity, error) {
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var id Identity
	if err := json.Unmarshal(payload, &id); err != nil {
		return nil, err
	}
	if sm.ttl > 0 {
		_ = sm.client.Expire(ctx, sm.redisKey(token), sm.ttl).Err()
	}
	return &id, nil
}

// Store persists an identity under token. Used by the login surface, which
// lives outside this service, and by tests.
func (sm *SessionManager) Store(ctx context.Context, token string, id Identity) error {
	payload, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return sm.client.Set(ctx, sm.redisKey(token), payload, sm.ttl).Err()
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}
