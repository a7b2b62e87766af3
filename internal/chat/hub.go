package chat

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFanOut is the broadcast concurrency used when no option overrides it.
const DefaultFanOut = 32

// Hub owns all shared relay state: the identity allocator, the registry and
// the dispatcher. One Hub serves every connection of a server instance.
type Hub struct {
	allocator  *Allocator
	registry   *Registry
	dispatcher *Dispatcher
	log        zerolog.Logger
	now        func() time.Time
	onState    func(Conn, State)

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Hub.
type Option func(*hubOptions)

type hubOptions struct {
	fanOut  int
	src     rand.Source
	now     func() time.Time
	onState func(Conn, State)
}

// WithFanOut bounds concurrent deliveries per broadcast.
func WithFanOut(n int) Option {
	return func(o *hubOptions) { o.fanOut = n }
}

// WithRandSource sets the random source used to pick colors.
func WithRandSource(src rand.Source) Option {
	return func(o *hubOptions) { o.src = src }
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *hubOptions) { o.now = now }
}

// WithStateHook registers fn to observe every session state transition.
// fn runs on the session goroutine and must not block.
func WithStateHook(fn func(Conn, State)) Option {
	return func(o *hubOptions) { o.onState = fn }
}

// NewHub creates a Hub ready to serve connections.
func NewHub(log zerolog.Logger, opts ...Option) *Hub {
	o := hubOptions{fanOut: DefaultFanOut, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		allocator:  NewAllocator(o.src),
		registry:   registry,
		dispatcher: NewDispatcher(registry, o.fanOut, log),
		log:        log.With().Str("component", "hub").Logger(),
		now:        o.now,
		onState:    o.onState,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Dispatcher returns the hub's broadcast dispatcher.
func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// Online returns the number of registered connections.
func (h *Hub) Online() int {
	return h.registry.Count()
}

// Serve runs the session for conn and returns once the connection is closed
// and cleaned up. After Shutdown, Serve closes conn immediately.
func (h *Hub) Serve(conn Conn) {
	s := h.admit(conn)
	if s == nil {
		return
	}
	defer h.wg.Done()
	s.run()
}

// Accept assigns conn its user id and color on the calling goroutine, then
// runs the session on a goroutine of its own. Connections handed to Accept
// one after another get strictly increasing ids in that order.
func (h *Hub) Accept(conn Conn) {
	s := h.admit(conn)
	if s == nil {
		return
	}
	go func() {
		defer h.wg.Done()
		s.run()
	}()
}

// admit allocates the identity for conn and counts its session in the wait
// group. It returns nil and closes conn once the hub is shutting down.
func (h *Hub) admit(conn Conn) *sessionHandler {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.wg.Add(1)
	id := h.allocator.NextID()
	h.mu.Unlock()

	self := Session{ID: id, DisplayName: DefaultDisplayName(id), Color: h.allocator.RandomColor()}
	return newSessionHandler(h, conn, self)
}

// Shutdown stops admitting sessions, closes every registered connection and
// waits up to timeout for running sessions to finish. It returns
// context.DeadlineExceeded when the wait times out.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("Initiating hub shutdown")

	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	conns := h.registry.Snapshot()
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			h.log.Debug().Err(err).Str("remote_addr", conn.RemoteAddr()).Msg("Error closing connection during shutdown")
		}
	}
	h.log.Info().Int("connections", len(conns)).Msg("Closed client connections")

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Dur("timeout", timeout).Msg("Hub shutdown timed out, some sessions may still be running")
		return context.DeadlineExceeded
	}
}

func (h *Hub) closing() bool {
	return h.ctx.Err() != nil
}
