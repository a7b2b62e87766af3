package server

import (
	"encoding/json"
	"net/http"

	"github.com/Tyrowin/relaychat/web"
)

// frontendConfig tells the browser frontend where the chat listener is.
type frontendConfig struct {
	ChatPort int `json:"chatPort"`
}

// StaticHandler serves the frontend assets from dir, or the embedded
// frontend when dir is empty. It shares no state with the chat hub.
func StaticHandler(dir string, chatPort int) http.Handler {
	var files http.Handler
	if dir == "" {
		files = http.FileServerFS(web.FS())
	} else {
		files = http.FileServer(http.Dir(dir))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /config.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(frontendConfig{ChatPort: chatPort})
	})
	mux.Handle("/", files)
	return mux
}
