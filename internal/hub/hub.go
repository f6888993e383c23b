package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/pubsub"
)

const publishTimeout = 3 * time.Second

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidRoom  = errors.New("room id is required")
	ErrHubStopped   = errors.New("hub stopped")
)

// RoomInfo is the public description of a room.
type RoomInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type room struct {
	RoomInfo
	clients map[string]*Client // clientID -> client
}

// RoomMessage is one frame addressed to every client of a room.
type RoomMessage struct {
	RoomID  string
	Message []byte
}

// Hub tracks rooms and their connected clients and fans messages out.
// With a bus every room frame travels through it, so hubs sharing a bus
// deliver to each other's clients.
type Hub struct {
	id         string
	bus        pubsub.PubSub
	rooms      map[string]*room
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	mu         sync.RWMutex
	done       chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithBus routes room frames through bus.
func WithBus(bus pubsub.PubSub) Option {
	return func(h *Hub) { h.bus = bus }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		id:         uuid.New().String(),
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	l := log.L()
	var events <-chan *pubsub.Event
	if h.bus != nil {
		ch, err := h.bus.SubscribePattern(ctx, pubsub.PatternRoom)
		if err != nil {
			l.Error().Err(err).Msg("bus subscribe failed, delivering locally only")
			h.bus = nil
		} else {
			events = ch
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.fanout(msg)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.deliver(&RoomMessage{RoomID: ev.RoomID, Message: ev.Payload})
		}
	}
}

// fanout delivers msg locally, or publishes it when a bus is attached.
func (h *Hub) fanout(msg *RoomMessage) {
	if msg == nil {
		return
	}
	if h.bus == nil {
		h.deliver(msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	ev := pubsub.NewRoomEvent(msg.RoomID, h.id, msg.Message)
	if err := h.bus.Publish(ctx, pubsub.RoomChannel(msg.RoomID), ev); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("publish failed, delivering locally")
		h.deliver(msg)
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	r, ok := h.rooms[client.RoomID]
	if !ok {
		h.mu.Unlock()
		l := log.L()
		l.Warn().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, client.RoomID).Msg("register for unknown room")
		go client.Close()
		return
	}
	r.clients[client.ID] = client
	h.mu.Unlock()

	l := log.L()
	l.Info().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldRoomID, client.RoomID).
		Str(log.FieldUsername, client.Username).
		Msg("client joined room")

	h.fanout(h.notice(client, domain.KindJoin, domain.JoinNotice))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	r, ok := h.rooms[client.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := r.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(r.clients, client.ID)
	h.mu.Unlock()

	l := log.L()
	l.Info().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldRoomID, client.RoomID).
		Str(log.FieldUsername, client.Username).
		Msg("client left room")

	h.fanout(h.notice(client, domain.KindLeave, domain.LeaveNotice))
	go client.Close()
}

func (h *Hub) deliver(msg *RoomMessage) {
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[msg.RoomID]
	if !ok {
		return
	}
	for clientID, client := range r.clients {
		if err := client.send(msg.Message); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldClientID, clientID).Msg("dropping slow client")
			go h.Unregister(client)
		}
	}
}

// notice builds a join or leave frame carrying both the explicit kind and
// the legacy notice text.
func (h *Hub) notice(client *Client, kind, content string) *RoomMessage {
	data, err := json.Marshal(domain.InboundPayload{
		Kind:     kind,
		Content:  content,
		Username: client.Username,
		RoomID:   client.RoomID,
	})
	if err != nil {
		return nil
	}
	return &RoomMessage{RoomID: client.RoomID, Message: data}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0)
	for _, r := range h.rooms {
		clients = append(clients, lo.Values(r.clients)...)
		r.clients = make(map[string]*Client)
	}
	h.mu.Unlock()

	for _, c := range clients {
		go c.Close()
	}
}

// Register adds client to its room. The room's members, the new client
// included, receive a join notice.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes client. Unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastChat sends content from client to everyone in its room,
// sender included.
func (h *Hub) BroadcastChat(client *Client, content string) error {
	data, err := json.Marshal(domain.InboundPayload{
		Kind:     domain.KindChat,
		Content:  content,
		Username: client.Username,
		SenderID: client.UserID,
		RoomID:   client.RoomID,
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &RoomMessage{RoomID: client.RoomID, Message: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// CreateRoom adds an empty room.
func (h *Hub) CreateRoom(id, name string) (RoomInfo, error) {
	if id == "" {
		return RoomInfo{}, ErrInvalidRoom
	}
	if name == "" {
		name = id
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[id]; ok {
		return RoomInfo{}, ErrRoomExists
	}
	info := RoomInfo{ID: id, Name: name}
	h.rooms[id] = &room{RoomInfo: info, clients: make(map[string]*Client)}
	return info, nil
}

// HasRoom reports whether the room exists.
func (h *Hub) HasRoom(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[id]
	return ok
}

// Rooms lists every room ordered by id.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := lo.MapToSlice(h.rooms, func(_ string, r *room) RoomInfo {
		return r.RoomInfo
	})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Members lists the users connected to a room ordered by username. An
// unknown room has no members.
func (h *Hub) Members(roomID string) []domain.MemberEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return []domain.MemberEntry{}
	}
	members := lo.MapToSlice(r.clients, func(_ string, c *Client) domain.MemberEntry {
		return domain.MemberEntry{ID: c.UserID, Username: c.Username}
	})
	sort.Slice(members, func(i, j int) bool {
		if members[i].Username == members[j].Username {
			return members[i].ID < members[j].ID
		}
		return members[i].Username < members[j].Username
	})
	return members
}
