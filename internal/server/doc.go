// Package server implements the transport side of relaychat.
//
// The chat listener upgrades HTTP requests to WebSocket with
// gorilla/websocket, wraps each connection in a Client (read deadlines,
// rate limiting, write pump) and hands it to a chat.Hub. A second listener
// serves the browser frontend. Server.Run drives both and shuts them down
// together when its context is cancelled.
package server
