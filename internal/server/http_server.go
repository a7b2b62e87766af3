package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// CreateServer creates an HTTP server for handler with production timeouts.
// WebSocket connections set their own deadlines after the upgrade.
func CreateServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ShutdownServer stops server from accepting requests and waits up to
// timeout for in-flight requests. Hijacked WebSocket connections are not
// tracked by net/http and must be closed separately.
func ShutdownServer(server *http.Server, timeout time.Duration, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
		return err
	}

	log.Debug().Msg("HTTP server shutdown completed")
	return nil
}
