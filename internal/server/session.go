package server

import (
	"github.com/emberkv/ember/internal/resp"
)

// Session is the per-connection dispatcher state. It holds a database
// index, not a database reference, so SELECT is a plain field write.
type Session struct {
	dbIndex       int
	authenticated bool
	requests      int
	channels      map[string]struct{} // subscribed channel names
	parser        *resp.Parser
}

// NewSession creates the initial state for a freshly accepted connection
func NewSession() *Session {
	return &Session{
		channels: make(map[string]struct{}),
		parser:   resp.NewParser(),
	}
}
