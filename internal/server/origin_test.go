package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard allows anything", []string{"*"}, "https://anywhere.test", true},
		{"wildcard allows missing origin", []string{"*"}, "", true},
		{"exact match", []string{"https://chat.example.com"}, "https://chat.example.com", true},
		{"case insensitive", []string{"HTTPS://Chat.Example.com"}, "https://chat.example.COM", true},
		{"port matters", []string{"http://localhost:8000"}, "http://localhost:9000", false},
		{"scheme matters", []string{"https://chat.example.com"}, "http://chat.example.com", false},
		{"missing origin rejected", []string{"https://chat.example.com"}, "", false},
		{"invalid config entry ignored", []string{"not-an-origin", " "}, "not-an-origin", false},
		{"empty list rejects", nil, "https://chat.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, zerolog.Nop())
			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, p.checkOrigin(r))
		})
	}
}
