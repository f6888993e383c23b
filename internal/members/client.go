package members

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected membership response status")
	ErrDecode           = errors.New("decode membership response")
)

// maxBody caps the membership response read.
const maxBody = 1 << 20

// Client runs the membership query against the chat server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL (http or https).
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Fetch returns the current members of roomID.
func (c *Client) Fetch(ctx context.Context, roomID string) (domain.MemberSet, error) {
	endpoint := c.baseURL.JoinPath("ws", "getClients", roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build membership request: %w", err)
	}
	reqID := pkglog.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(pkglog.HeaderRequestID, reqID)

	l := pkglog.Ctx(ctx)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("membership request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var entries []domain.MemberEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	l.Debug().
		Str(pkglog.FieldRequestID, reqID).
		Str(pkglog.FieldRoomID, roomID).
		Int("members", len(entries)).
		Float64(pkglog.FieldLatency, float64(time.Since(start).Milliseconds())).
		Msg("membership fetched")

	return domain.MemberSetFromEntries(entries), nil
}
