// Package server exposes the runtime over REST and server-sent events.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rundex/agentrelay"
	"github.com/rundex/agentrelay/logging"
)

// Options configures the HTTP server.
type Options struct {
	// AllowedOrigins for CORS. Defaults to all origins, matching the demo
	// deployment where the web UI is served from a different port.
	AllowedOrigins []string

	// Verbose attaches execution traces to synchronous query replies.
	Verbose bool

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Server serves the runtime API: query processing (JSON or SSE), group chat,
// agent listing, conversation retrieval, cancellation, health and metrics.
type Server struct {
	runtime        *agentrelay.Runtime
	verbose        bool
	logger         logging.Logger
	allowedOrigins []string
}

// New creates a Server over a runtime.
func New(rt *agentrelay.Runtime, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins: []string{"*"},
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{
		runtime:        rt,
		verbose:        opts.Verbose,
		logger:         opts.Logger,
		allowedOrigins: opts.AllowedOrigins,
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/query", s.handleQuery).Methods("POST")
	r.HandleFunc("/api/group-chat", s.handleGroupChat).Methods("POST")
	r.HandleFunc("/api/agents", s.handleListAgents).Methods("GET")
	r.HandleFunc("/api/conversations/{id}", s.handleGetConversation).Methods("GET")
	r.HandleFunc("/api/cancel/{id}", s.handleCancel).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// Start blocks serving HTTP on addr. WriteTimeout stays unset so SSE streams
// are not cut off by the server.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening", "addr", addr)
	return srv.ListenAndServe()
}
