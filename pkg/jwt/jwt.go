package jwt

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrEmptySecret  = errors.New("jwt secret must not be empty")
)

// Claims carries the chat identity. The id/username keys match what
// the chat server puts in its tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"id"`
	Username string `json:"username"`
}

// Manager signs and validates HS256 tokens with a shared secret.
type Manager struct {
	secret   []byte
	duration time.Duration
	issuer   string

	// In-memory revocation store keyed by token id, holding the time
	// the entry can be forgotten.
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

// NewManager creates a new JWT manager.
func NewManager(secret string, duration time.Duration, issuer string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret:   []byte(secret),
		duration: duration,
		issuer:   issuer,
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// GenerateToken issues an access token for the given identity.
func (m *Manager) GenerateToken(userID, username string) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
		UserID:   userID,
		Username: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ValidateToken validates a token and returns claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if m.IsRevoked(claims.ID) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RevokeToken revokes the token the claims came from until it would
// have expired anyway.
func (m *Manager) RevokeToken(claims *Claims) {
	if claims.ID == "" {
		return
	}
	expiry := m.now().Add(m.duration)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[claims.ID] = expiry
}

// IsRevoked checks if the token with the given id is revoked.
func (m *Manager) IsRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	m.mu.RLock()
	expiry, exists := m.revoked[tokenID]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	if m.now().After(expiry) {
		m.mu.Lock()
		delete(m.revoked, tokenID)
		m.mu.Unlock()
		return false
	}
	return true
}

// ParseUnverified decodes the claims of a token without checking its
// signature. Clients that do not hold the server secret use it to read
// their own identity; the server remains the authority.
func ParseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
