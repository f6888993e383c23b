package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	pkgjwt "github.com/weiawesome/wes-io-live/chat-client/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

var (
	ErrNoIdentity   = errors.New("no identity configured")
	ErrRevokeFailed = errors.New("revoke failed")
	ErrNotRevocable = errors.New("identity has no server session to revoke")
)

// Config selects where the identity comes from. A token takes
// precedence over a static id/username pair.
type Config struct {
	Token    string `mapstructure:"token"`
	Secret   string `mapstructure:"secret"`
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
}

// Provider supplies the current user. It is read by the chat core and
// only changed by Revoke.
type Provider struct {
	mu            sync.RWMutex
	identity      domain.Identity
	authenticated bool
	token         string

	serverURL  string
	httpClient *http.Client
}

// New builds a provider from cfg. With a secret the token signature is
// checked; without one the claims are read as-is and the server stays
// the authority.
func New(cfg Config, serverURL string) (*Provider, error) {
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	switch {
	case cfg.Token != "":
		claims, err := parseToken(cfg.Token, cfg.Secret)
		if err != nil {
			return nil, fmt.Errorf("identity token: %w", err)
		}
		p.identity = domain.Identity{ID: claims.UserID, Username: claims.Username}
		p.token = cfg.Token
		p.authenticated = true
	case cfg.ID != "" && cfg.Username != "":
		p.identity = domain.Identity{ID: cfg.ID, Username: cfg.Username}
		p.authenticated = true
	default:
		return nil, ErrNoIdentity
	}
	return p, nil
}

func parseToken(token, secret string) (*pkgjwt.Claims, error) {
	if secret == "" {
		return pkgjwt.ParseUnverified(token)
	}
	m, err := pkgjwt.NewManager(secret, time.Hour, "")
	if err != nil {
		return nil, err
	}
	return m.ValidateToken(token)
}

// Current returns the current identity.
func (p *Provider) Current() domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

// Authenticated reports whether the identity is still usable.
func (p *Provider) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authenticated
}

// Token returns the access token, empty for static identities or after
// Revoke.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Revoke ends the server session behind a token identity and marks the
// provider unauthenticated. Static identities have nothing to revoke
// and are just marked unauthenticated.
func (p *Provider) Revoke(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.authenticated = false
	p.token = ""
	p.mu.Unlock()

	if token == "" {
		return ErrNotRevocable
	}

	u, err := url.Parse(p.serverURL)
	if err != nil {
		return fmt.Errorf("%w: parse server url: %v", ErrRevokeFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.JoinPath("logout").String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRevokeFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(pkglog.HeaderRequestID, pkglog.NewRequestID())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRevokeFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRevokeFailed, resp.StatusCode)
	}
	return nil
}
