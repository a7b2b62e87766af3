package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/relaychat/internal/chat"
	"github.com/Tyrowin/relaychat/internal/config"
)

// Server runs the chat listener and the static asset server for one hub.
type Server struct {
	cfg      config.Config
	log      zerolog.Logger
	hub      *chat.Hub
	upgrader websocket.Upgrader
}

// New builds a Server from cfg. opts are passed through to the hub.
func New(cfg config.Config, log zerolog.Logger, opts ...chat.Option) *Server {
	opts = append([]chat.Option{chat.WithFanOut(cfg.FanOut)}, opts...)
	origins := newOriginPolicy(cfg.AllowedOrigins, log.With().Str("component", "origin").Logger())

	return &Server{
		cfg: cfg,
		log: log.With().Str("component", "server").Logger(),
		hub: chat.NewHub(log, opts...),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *chat.Hub {
	return s.hub
}

// Run binds the chat and static addresses from the config and serves until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	chatLn, err := net.Listen("tcp", s.cfg.ChatAddr())
	if err != nil {
		return fmt.Errorf("listen on chat address %s: %w", s.cfg.ChatAddr(), err)
	}
	staticLn, err := net.Listen("tcp", s.cfg.StaticAddr())
	if err != nil {
		_ = chatLn.Close()
		return fmt.Errorf("listen on static address %s: %w", s.cfg.StaticAddr(), err)
	}
	return s.Serve(ctx, chatLn, staticLn)
}

// Serve accepts chat connections on chatLn and asset requests on staticLn
// until ctx is cancelled or either listener fails. On return both servers
// are stopped and every chat connection has been closed, or the shutdown
// timeout has elapsed.
func (s *Server) Serve(ctx context.Context, chatLn, staticLn net.Listener) error {
	chatSrv := CreateServer(s.SetupRoutes())
	staticSrv := CreateServer(StaticHandler(s.cfg.StaticDir, s.cfg.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", chatLn.Addr().String()).Msg("Chat server listening")
		if err := chatSrv.Serve(chatLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("chat server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info().Str("addr", staticLn.Addr().String()).Msg("Static server listening")
		if err := staticSrv.Serve(staticLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("static server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(chatSrv, staticSrv)
	})

	return g.Wait()
}

func (s *Server) shutdown(chatSrv, staticSrv *http.Server) error {
	s.log.Info().Msg("Shutting down")
	timeout := s.cfg.ShutdownTimeout

	var errs []error
	if err := ShutdownServer(chatSrv, timeout, s.log); err != nil {
		errs = append(errs, fmt.Errorf("chat server shutdown: %w", err))
	}
	if err := s.hub.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := ShutdownServer(staticSrv, timeout, s.log); err != nil {
		errs = append(errs, fmt.Errorf("static server shutdown: %w", err))
	}
	return errors.Join(errs...)
}
