// Package chat implements the relay core: identity allocation, the
// connection registry, the broadcast dispatcher, and the per-connection
// session state machine.
//
// The package knows nothing about WebSockets. A transport plugs in by
// implementing Conn; internal/server does so on top of gorilla/websocket.
package chat
