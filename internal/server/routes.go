package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the HTTP handler with every application route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/ws", s.WebSocketHandler)
	r.Get("/test", TestPageHandler)
	r.Get("/api/chat", s.ChatHandler)
	r.Get("/api/document", s.DocumentHandler)
	r.Post("/api/message", s.PostMessageHandler)
	r.Post("/login", s.LoginHandler)
	return r
}
