package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
)

type user struct {
	id           string
	username     string
	passwordHash []byte
}

// UserService keeps dev server accounts in memory. The first login for
// a username registers it with the given password.
type UserService struct {
	cost  int
	mu    sync.Mutex
	users map[string]*user // username -> user
}

// NewUserService creates a user service hashing with the given bcrypt
// cost; zero means bcrypt.DefaultCost.
func NewUserService(cost int) *UserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{cost: cost, users: make(map[string]*user)}
}

// Login authenticates username, registering it on first use.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.Identity, error) {
	l := log.Ctx(ctx)

	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Identity{}, ErrInvalidUsername
	}
	if password == "" {
		return domain.Identity{}, ErrPasswordRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[username]; ok {
		// Verify password
		if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
			l.Info().Str(log.FieldUsername, username).Msg("login failed: wrong password")
			return domain.Identity{}, ErrInvalidCredentials
		}
		return domain.Identity{ID: u.id, Username: u.username}, nil
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return domain.Identity{}, err
	}
	u := &user{id: uuid.New().String(), username: username, passwordHash: hash}
	s.users[username] = u
	l.Info().Str(log.FieldUserID, u.id).Str(log.FieldUsername, username).Msg("user registered")

	return domain.Identity{ID: u.id, Username: u.username}, nil
}
