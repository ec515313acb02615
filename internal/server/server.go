package server

import (
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/collabchat/internal/config"
	"github.com/Tyrowin/collabchat/internal/state"
)

// Server bundles the registry, the router and the HTTP surface over one
// State Manager.
type Server struct {
	cfg      *config.Config
	state    *state.Manager
	hub      *Hub
	router   *Router
	upgrader websocket.Upgrader
}

// New builds a Server around st. cfg must already be sanitized.
func New(cfg *config.Config, st *state.Manager) *Server {
	hub := NewHub(st)
	origins := newOriginPolicy(cfg.AllowedOrigins)

	return &Server{
		cfg:    cfg,
		state:  st,
		hub:    hub,
		router: NewRouter(st, hub, cfg.NotifyDisconnect),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// Hub returns the connection registry for shutdown coordination.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) clientOptions() ClientOptions {
	return ClientOptions{
		MaxMessageSize: s.cfg.MaxMessageSize,
		SendBufferSize: s.cfg.SendBufferSize,
		RateLimit:      s.cfg.RateLimit(),
	}
}
