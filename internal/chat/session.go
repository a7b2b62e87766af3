package chat

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// State is a session lifecycle state.
type State int

// Session lifecycle: Connecting -> Active -> Closing -> Closed. A failure
// while connecting skips Active.
const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var errHubClosed = errors.New("hub is shutting down")

// sessionHandler drives one connection through its lifecycle. It is used by
// a single goroutine and needs no locking of its own.
type sessionHandler struct {
	hub        *Hub
	conn       Conn
	self       Session
	log        zerolog.Logger
	state      State
	registered bool
}

func newSessionHandler(h *Hub, conn Conn, self Session) *sessionHandler {
	ctx := h.log.With().Str("component", "session").Str("remote_addr", conn.RemoteAddr()).Uint64("user_id", self.ID)
	if c, ok := conn.(interface{ ConnID() string }); ok {
		ctx = ctx.Str("conn_id", c.ConnID())
	}
	s := &sessionHandler{hub: h, conn: conn, self: self, log: ctx.Logger()}
	s.transition(StateConnecting)
	return s
}

func (s *sessionHandler) transition(to State) {
	s.state = to
	s.log.Debug().Stringer("state", to).Msg("Session state changed")
	if s.hub.onState != nil {
		s.hub.onState(s.conn, to)
	}
}

func (s *sessionHandler) run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Recovered from panic in session")
		}
	}()
	defer s.close()

	if err := s.open(); err != nil {
		if errors.Is(err, ErrDuplicateHandle) {
			s.log.Error().Err(err).Msg("Connection registered twice")
		} else {
			s.log.Info().Err(err).Msg("Session setup aborted")
		}
		return
	}
	s.transition(StateActive)
	s.receive()
}

// open registers the connection and announces it. The welcome goes out
// before registration so it is always the first frame the client sees.
func (s *sessionHandler) open() error {
	h := s.hub
	self := s.self

	if _, err := h.registry.Get(s.conn); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateHandle, s.conn.RemoteAddr())
	}
	if err := h.dispatcher.SendTo(s.conn, NewWelcome(self)); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	if err := h.registry.Register(s.conn, self); err != nil {
		return err
	}
	s.registered = true
	if h.closing() {
		return errHubClosed
	}

	s.log.Info().Str("username", self.DisplayName).Str("color", self.Color).
		Int("online", h.registry.Count()).Msg("User connected")
	h.dispatcher.Broadcast(NewSystem(joinedText(self.DisplayName), h.now()), s.conn)
	h.dispatcher.AnnounceUserCount()
	return nil
}

func (s *sessionHandler) receive() {
	for {
		raw, err := s.conn.ReadFrame()
		if err != nil {
			s.log.Debug().Err(err).Msg("Read loop ended")
			return
		}

		if err := s.handleFrame(raw); err != nil {
			switch {
			case errors.Is(err, ErrMalformedMessage):
				s.log.Warn().Err(err).Msg("Dropping malformed message")
			case errors.Is(err, ErrNotFound):
				s.log.Debug().Msg("Message arrived after unregister, skipping")
			default:
				s.log.Warn().Err(err).Msg("Message processing failed")
			}
		}
	}
}

func (s *sessionHandler) handleFrame(raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()

	f, err := parseFrame(raw)
	if err != nil {
		return err
	}

	switch f.Type {
	case TypeUsername:
		return s.rename(f)
	case TypeChat:
		return s.chat(f)
	default:
		s.log.Debug().Str("type", f.Type).Msg("Ignoring message of unknown type")
		return nil
	}
}

func (s *sessionHandler) rename(f frame) error {
	name, err := f.displayName()
	if err != nil {
		return err
	}

	old, err := s.hub.registry.Rename(s.conn, name)
	if err != nil {
		return err
	}
	s.log.Info().Str("from", old).Str("to", name).Msg("User renamed")
	s.hub.dispatcher.Broadcast(NewSystem(renamedText(old, name), s.hub.now()), nil)
	return nil
}

func (s *sessionHandler) chat(f frame) error {
	body, err := f.chatBody()
	if err != nil {
		return err
	}
	self, err := s.hub.registry.Get(s.conn)
	if err != nil {
		return err
	}

	s.log.Debug().Str("username", self.DisplayName).Int("length", len(body)).Msg("Relaying chat message")
	s.hub.dispatcher.Broadcast(NewChat(self, body, s.hub.now()), nil)
	return nil
}

// close unregisters the session, announces the departure and releases the
// connection. The connection is closed even if an announcement panics.
func (s *sessionHandler) close() {
	s.transition(StateClosing)
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Error closing connection")
		}
		s.transition(StateClosed)
	}()

	if !s.registered {
		return
	}
	self, ok := s.hub.registry.Unregister(s.conn)
	if !ok {
		return
	}

	s.log.Info().Str("username", self.DisplayName).Int("online", s.hub.registry.Count()).Msg("User disconnected")
	s.hub.dispatcher.Broadcast(NewSystem(leftText(self.DisplayName), s.hub.now()), nil)
	s.hub.dispatcher.AnnounceUserCount()
}
