package http

import (
	"log/slog"
	"net/http"
)

// NewServer registers the feed, read tracking and health endpoints behind
// the request id, logging, recovery and CORS middleware.
func NewServer(log *slog.Logger, h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /feeds", h.getFeed)
	mux.HandleFunc("GET /feeds/{group}", h.getFeed)
	mux.HandleFunc("GET /read", h.recordRead)
	mux.HandleFunc("POST /read", h.recordRead)
	mux.HandleFunc("GET /top", h.topReads)
	mux.HandleFunc("GET /api/health", h.healthCheck)

	var handler http.Handler = mux
	handler = recoverMiddleware(log)(handler)
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware()(handler)
	handler = corsMiddleware()(handler)
	return handler
}
