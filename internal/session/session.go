// Package session replaces the browser-local user record with server-side
// sessions. Login initializes a session and hands back a signed token;
// Logout tears it down.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/metrics"
	"github.com/maneesh/fasttranscribe/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("email is required")
	ErrNoSession          = errors.New("no active session")
)

// Session is the server-side record behind a token
type Session struct {
	ID        string      `json:"id"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Store keeps live sessions. Get returns nil, nil for unknown IDs.
type Store interface {
	SaveSession(ctx context.Context, s *Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Claims holds JWT token claims.
type Claims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TeardownHook runs after a session has been removed
type TeardownHook func(sessionID string)

// Manager issues and validates sessions
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration

	mu       sync.RWMutex
	teardown []TeardownHook
	live     map[string]time.Time // session ID -> expiry
}

// NewManager creates a session manager. An empty secret gets a random one,
// which invalidates every token on restart.
func NewManager(store Store, secret string, ttl time.Duration) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		logging.Warn("JWT_SECRET not set, using an ephemeral signing key")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: store, secret: key, ttl: ttl, live: make(map[string]time.Time)}, nil
}

// OnTeardown registers a hook run on logout
func (m *Manager) OnTeardown(hook TeardownHook) {
	m.mu.Lock()
	m.teardown = append(m.teardown, hook)
	m.mu.Unlock()
}

// Login opens a session for any non-empty email and password. Accounts
// whose email contains "admin" get the admin role.
func (m *Manager) Login(ctx context.Context, email, password string) (string, *Session, error) {
	return m.open(ctx, email, password, strings.Contains(email, "admin"))
}

// Register creates the account and logs it in. Accounts are not persisted
// and new accounts never get the admin role.
func (m *Manager) Register(ctx context.Context, email, password string) (string, *Session, error) {
	return m.open(ctx, email, password, false)
}

func (m *Manager) open(ctx context.Context, email, password string, admin bool) (string, *Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.New().String(),
		User:      models.User{Email: email, IsAdmin: admin},
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.SaveSession(ctx, s, m.ttl); err != nil {
		return "", nil, fmt.Errorf("failed to save session: %w", err)
	}
	token, err := m.sign(s)
	if err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	m.live[s.ID] = s.ExpiresAt
	m.mu.Unlock()
	metrics.AddSessions(1)
	logging.Info("session opened", zap.String("session_id", s.ID), zap.Bool("is_admin", s.User.IsAdmin))
	return token, s, nil
}

// Authenticate validates a token and returns its live session
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrNoSession
	}

	s, err := m.store.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		m.release(claims.ID)
		return nil, ErrNoSession
	}
	return s, nil
}

// UpdateEmail changes the session email, keeps the admin flag, and issues a
// fresh token for the same session.
func (m *Manager) UpdateEmail(ctx context.Context, s *Session, email string) (string, *Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil, ErrInvalidEmail
	}

	updated := *s
	updated.User.Email = email
	ttl := time.Until(updated.ExpiresAt)
	if ttl <= 0 {
		return "", nil, ErrNoSession
	}
	if err := m.store.SaveSession(ctx, &updated, ttl); err != nil {
		return "", nil, fmt.Errorf("failed to save session: %w", err)
	}
	token, err := m.sign(&updated)
	if err != nil {
		return "", nil, err
	}
	return token, &updated, nil
}

// Logout removes the session and runs the teardown hooks
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.release(sessionID)
	logging.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

// Sweep releases sessions that expired without a logout and returns how
// many it found.
func (m *Manager) Sweep() int {
	now := time.Now()
	var expired []string
	m.mu.RLock()
	for id, exp := range m.live {
		if now.After(exp) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.release(id)
	}
	if len(expired) > 0 {
		logging.Debug("expired sessions released", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// release forgets a live session, then runs the teardown hooks. Unknown IDs
// still run the hooks so per-session state left from a restart is dropped.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	_, ok := m.live[sessionID]
	delete(m.live, sessionID)
	hooks := append([]TeardownHook(nil), m.teardown...)
	m.mu.Unlock()

	if ok {
		metrics.AddSessions(-1)
	}
	for _, hook := range hooks {
		hook(sessionID)
	}
}

func (m *Manager) sign(s *Session) (string, error) {
	claims := Claims{
		Email:   s.User.Email,
		IsAdmin: s.User.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.User.Email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) SaveSession(_ context.Context, s *Session, _ time.Duration) error {
	m.mu.Lock()
	m.sessions[s.ID] = *s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
