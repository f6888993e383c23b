package hub

import (
	"strings"

	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

// Conn is the server side of one websocket connection.
type Conn interface {
	Send(text string) error
	Subscribe(fn func([]byte)) (unsubscribe func())
	Done() <-chan struct{}
	Close() error
}

// Client is one connection joined to a room.
type Client struct {
	ID       string
	UserID   string
	Username string
	RoomID   string
	conn     Conn
}

func NewClient(id, userID, username, roomID string, conn Conn) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		RoomID:   roomID,
		conn:     conn,
	}
}

// Serve registers the client and relays its messages to the room until
// the connection or the hub goes away.
func (c *Client) Serve(h *Hub) {
	if err := h.Register(c); err != nil {
		c.Close()
		return
	}

	unsubscribe := c.conn.Subscribe(func(data []byte) {
		content := string(data)
		if strings.TrimSpace(content) == "" {
			return
		}
		if err := h.BroadcastChat(c, content); err != nil {
			l := log.L()
			l.Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("message dropped")
		}
	})
	defer unsubscribe()

	select {
	case <-c.conn.Done():
		h.Unregister(c)
	case <-h.Done():
	}
}

// Close ends the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(data []byte) error {
	return c.conn.Send(string(data))
}
