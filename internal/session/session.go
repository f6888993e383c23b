package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

// Handle is the live connection to a room as the session sees it.
type Handle interface {
	// RoomID is the room the connection is addressed to.
	RoomID() string
	// Send transmits text as-is.
	Send(text string) error
	// Subscribe installs fn as the only inbound frame handler, replacing
	// any previous one. The returned func removes it and must not block.
	Subscribe(fn func([]byte)) (unsubscribe func())
	// Done is closed when the connection is gone.
	Done() <-chan struct{}
}

// MemberFetcher runs the one-shot membership query.
type MemberFetcher interface {
	Fetch(ctx context.Context, roomID string) (domain.MemberSet, error)
}

// Update is published after every committed transition.
type Update struct {
	Snapshot
	// Redirect asks the presentation layer to leave the chat view
	// because there is no channel.
	Redirect bool
}

type inboundFrame struct {
	sub  uint64
	data []byte
}

type bootstrapResult struct {
	gen     uint64
	members domain.MemberSet
	err     error
}

type sendRequest struct {
	text  string
	reply chan error
}

// Session is the single writer of chat state. Every transition runs on
// the Run goroutine, in the order the inputs arrive.
type Session struct {
	machine  *Machine
	identity domain.Identity
	fetcher  MemberFetcher
	logger   zerolog.Logger

	attach    chan Handle
	inbound   chan inboundFrame
	bootstrap chan bootstrapResult
	sends     chan sendRequest
	identityC chan domain.Identity
	snapshots chan chan Snapshot
	updates   chan Update

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Loop-owned connection state.
	handle          Handle
	handleDone      <-chan struct{}
	unsubscribe     func()
	subSeq          uint64
	cancelBootstrap context.CancelFunc
	ctx             context.Context
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session for identity. Call Run to start it.
func New(identity domain.Identity, fetcher MemberFetcher, opts ...Option) *Session {
	s := &Session{
		machine:   NewMachine(),
		identity:  identity,
		fetcher:   fetcher,
		logger:    pkglog.L(),
		attach:    make(chan Handle),
		inbound:   make(chan inboundFrame),
		bootstrap: make(chan bootstrapResult),
		sends:     make(chan sendRequest),
		identityC: make(chan domain.Identity),
		snapshots: make(chan chan Snapshot),
		updates:   make(chan Update, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes session inputs until ctx is cancelled or Close is
// called.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	s.ctx = ctx
	defer s.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return

		case h := <-s.attach:
			s.handleAttach(h)

		case <-s.handleDone:
			s.handleLost()

		case f := <-s.inbound:
			s.handleInbound(f)

		case res := <-s.bootstrap:
			s.handleBootstrap(res)

		case req := <-s.sends:
			req.reply <- s.transmit(req.text)

		case id := <-s.identityC:
			s.identity = id
			s.logger.Debug().Str(pkglog.FieldUserID, id.ID).Msg("identity changed")

		case reply := <-s.snapshots:
			reply <- s.machine.Snapshot()
		}
	}
}

// Close tears the session down. No event is applied after it returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Updates delivers settled-state notifications. Only the latest pending
// update is kept; a pending redirect is never dropped.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Attach hands the session a channel. A nil handle means there is no
// channel: nothing is subscribed and a redirect is published.
func (s *Session) Attach(ctx context.Context, h Handle) error {
	return submit(ctx, s, s.attach, h)
}

// SetIdentity changes the identity used for messages appended from now
// on. Messages already held keep their provenance.
func (s *Session) SetIdentity(ctx context.Context, id domain.Identity) error {
	return submit(ctx, s, s.identityC, id)
}

// Send transmits trimmed text over the active channel. Blank text
// returns ErrEmptyMessage and no channel returns ErrTransportAbsent;
// neither transmits. Nothing is appended locally: the message shows up
// when the server echoes it back.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	req := sendRequest{text: text, reply: make(chan error, 1)}
	if err := submit(ctx, s, s.sends, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := submit(ctx, s, s.snapshots, reply); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-s.done:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func submit[T any](ctx context.Context, s *Session, ch chan T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-s.done:
		return ErrClosed
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handleAttach(h Handle) {
	if s.handle != nil {
		s.detach()
	}
	if h == nil {
		s.logger.Info().Msg("no channel, leaving chat view")
		s.machine.Deactivate()
		s.publish(true)
		return
	}

	roomID := h.RoomID()
	s.handle = h
	s.handleDone = h.Done()
	gen := s.machine.Activate(roomID)

	s.subSeq++
	seq := s.subSeq
	s.unsubscribe = h.Subscribe(func(data []byte) {
		select {
		case s.inbound <- inboundFrame{sub: seq, data: data}:
		case <-s.quit:
		case <-s.done:
		}
	})

	s.startBootstrap(gen, roomID)
	s.logger.Info().Str(pkglog.FieldRoomID, roomID).Str(pkglog.FieldStatusTo, StatusActive.String()).Msg("channel attached")
	s.publish(false)
}

func (s *Session) handleLost() {
	roomID := s.handle.RoomID()
	s.detach()
	s.machine.Deactivate()
	s.logger.Info().Str(pkglog.FieldRoomID, roomID).Str(pkglog.FieldStatusTo, StatusAbsent.String()).Msg("channel closed, leaving chat view")
	s.publish(true)
}

// detach drops the subscription and any bootstrap in flight.
func (s *Session) detach() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	// Frames already queued under the old sequence are dropped.
	s.subSeq++
	s.releaseBootstrap()
	s.handle = nil
	s.handleDone = nil
}

func (s *Session) teardown() {
	if s.handle != nil {
		s.detach()
	}
	s.machine.Deactivate()
}

func (s *Session) startBootstrap(gen uint64, roomID string) {
	if s.fetcher == nil {
		s.machine.FailBootstrap(gen)
		return
	}
	ctx, cancel := context.WithCancel(pkglog.WithRoom(s.ctx, roomID))
	s.cancelBootstrap = cancel
	go func() {
		members, err := s.fetcher.Fetch(ctx, roomID)
		select {
		case s.bootstrap <- bootstrapResult{gen: gen, members: members, err: err}:
		case <-s.quit:
		case <-s.done:
		}
	}()
}

func (s *Session) handleBootstrap(res bootstrapResult) {
	if res.err != nil {
		if s.machine.FailBootstrap(res.gen) {
			s.releaseBootstrap()
			s.logger.Error().Err(fmt.Errorf("%w: %w", ErrBootstrap, res.err)).Msg("membership bootstrap failed")
		}
		return
	}
	if !s.machine.ApplyBootstrap(res.gen, res.members) {
		s.logger.Debug().Uint64("generation", res.gen).Msg("stale membership bootstrap dropped")
		return
	}
	s.releaseBootstrap()
	s.publish(false)
}

func (s *Session) releaseBootstrap() {
	if s.cancelBootstrap != nil {
		s.cancelBootstrap()
		s.cancelBootstrap = nil
	}
}

func (s *Session) handleInbound(f inboundFrame) {
	if f.sub != s.subSeq || s.handle == nil {
		return
	}
	payload, err := Decode(f.data)
	if err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(f.data)).Msg("dropping inbound frame")
		return
	}
	ev := Classify(payload)
	s.machine.Apply(ev, s.identity)
	s.logger.Debug().
		Str(pkglog.FieldEventKind, ev.Kind.String()).
		Str(pkglog.FieldUsername, payload.Username).
		Str(pkglog.FieldSenderID, payload.SenderID).
		Msg("inbound event applied")
	s.publish(false)
}

func (s *Session) transmit(text string) error {
	if s.handle == nil {
		s.logger.Debug().Msg("send dropped, no channel")
		return ErrTransportAbsent
	}
	if err := s.handle.Send(text); err != nil {
		err = fmt.Errorf("%w: %w", ErrTransmit, err)
		s.logger.Error().Err(err).Str(pkglog.FieldRoomID, s.handle.RoomID()).Msg("send failed")
		return err
	}
	return nil
}

// publish hands the latest state to the presentation side without
// blocking the loop.
func (s *Session) publish(redirect bool) {
	u := Update{Snapshot: s.machine.Snapshot(), Redirect: redirect}
	select {
	case prev := <-s.updates:
		u.Redirect = u.Redirect || prev.Redirect
	default:
	}
	s.updates <- u
}

// IsSilent reports whether err is one the presentation layer should not
// surface.
func IsSilent(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrTransportAbsent)
}
