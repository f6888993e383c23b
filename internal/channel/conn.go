package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

var (
	ErrClosed         = errors.New("channel closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Config tunes the websocket connection.
type Config struct {
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	SendBuffer       int           `mapstructure:"send_buffer"`
}

// DefaultConfig mirrors the server side keepalive settings.
func DefaultConfig() Config {
	return Config{
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBuffer:       64,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return cfg
}

// Conn is one open websocket connection to a chat room.
type Conn struct {
	ws     *websocket.Conn
	roomID string
	cfg    Config
	logger zerolog.Logger

	send       chan []byte
	closing    chan struct{}
	done       chan struct{}
	subscribed chan struct{}

	closeOnce     sync.Once
	subscribeOnce sync.Once
	finishOnce    sync.Once
	err           error

	mu      sync.Mutex
	handler func([]byte)
	subID   uint64
}

// Dial opens a connection to rawURL and starts its pumps.
func Dial(ctx context.Context, rawURL string, header http.Header, cfg Config) (*Conn, error) {
	roomID, err := RoomIDFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, rawURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	return New(ws, roomID, cfg), nil
}

// New wraps an established websocket and starts its read and write
// pumps.
func New(ws *websocket.Conn, roomID string, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	c := &Conn{
		ws:         ws,
		roomID:     roomID,
		cfg:        cfg,
		logger:     pkglog.L().With().Str(pkglog.FieldRoomID, roomID).Logger(),
		send:       make(chan []byte, cfg.SendBuffer),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
		subscribed: make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *Conn) RoomID() string {
	return c.roomID
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended; nil while it is open or after
// a local Close.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Send queues text as one text frame.
func (c *Conn) Send(text string) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-c.closing:
		return ErrClosed
	default:
	}
	select {
	case c.send <- []byte(text):
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Subscribe installs fn as the inbound handler, replacing any other.
// Reading starts with the first Subscribe, so frames sent right after
// the handshake are not lost. Later frames arriving with no handler are
// dropped. fn runs on the read goroutine, one frame at a time, in
// arrival order.
func (c *Conn) Subscribe(fn func([]byte)) func() {
	c.mu.Lock()
	c.subID++
	id := c.subID
	c.handler = fn
	c.mu.Unlock()
	c.subscribeOnce.Do(func() { close(c.subscribed) })

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.subID == id {
			c.handler = nil
		}
	}
}

// Close sends a close frame and waits for the connection to end.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })

	select {
	case <-c.done:
	case <-time.After(c.cfg.WriteWait):
		c.ws.Close()
		<-c.done
	}
	return nil
}

func (c *Conn) dispatch(data []byte) {
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	if fn == nil {
		c.logger.Debug().Int("bytes", len(data)).Msg("frame dropped, no subscriber")
		return
	}
	fn(data)
}

func (c *Conn) finish(err error) {
	c.finishOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *Conn) readPump() {
	var readErr error
	defer func() {
		c.finish(readErr)
		c.ws.Close()
	}()

	select {
	case <-c.subscribed:
	case <-c.closing:
		return
	}

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Warn().Err(err).Msg("websocket closed unexpectedly")
				}
				readErr = err
			}
			return
		}
		c.dispatch(message)
	}
}

func (c *Conn) extendReadDeadline() {
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("websocket write failed")
				c.ws.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.ws.Close()
				return
			}

		case <-c.closing:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.ws.WriteMessage(websocket.CloseMessage, msg); err != nil {
				c.ws.Close()
			}
			return

		case <-c.done:
			return
		}
	}
}
