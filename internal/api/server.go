// Package api provides the remote-control HTTP API for the player.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/nowplaying"
	"github.com/listenupapp/listenup-player/internal/ratelimit"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// Player is the playback surface the API drives.
type Player interface {
	PlayEpisode(ctx context.Context, id string, playDirectly bool) error
	Snapshot() domain.PlaybackState
	Queue(ctx context.Context) ([]domain.QueueEntry, error)
	Enqueue(ctx context.Context, episodeID string, at domain.QueuePosition) error
	Dequeue(ctx context.Context, episodeID string) error
}

// SessionReader exposes listening history.
type SessionReader interface {
	Sessions(ctx context.Context, episodeID string) ([]*domain.PlaySession, error)
	Stats(ctx context.Context, episodeID string) (domain.SessionStats, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	Player    Player
	Sessions  SessionReader
	Library   Pinger
	Signals   SignalRouter
	Events    *sse.Manager
	Limiter   *ratelimit.KeyedRateLimiter
	Validator *validation.Validator
	Logger    *slog.Logger
	Version   string

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers. It is also a now-playing sink:
// it keeps the latest snapshot and dispatches remote commands to the player.
type Server struct {
	player    Player
	sessions  SessionReader
	library   Pinger
	signals   SignalRouter
	events    *sse.Manager
	limiter   *ratelimit.KeyedRateLimiter
	validator *validation.Validator
	logger    *slog.Logger
	version   string
	origins   []string

	router *chi.Mux
	api    huma.API

	mu         sync.RWMutex
	nowPlaying nowplaying.Snapshot
	commands   nowplaying.RemoteCommands
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		player:    cfg.Player,
		sessions:  cfg.Sessions,
		library:   cfg.Library,
		signals:   cfg.Signals,
		events:    cfg.Events,
		limiter:   cfg.Limiter,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		version:   cfg.Version,
		origins:   cfg.AllowedOrigins,
		router:    chi.NewRouter(),
	}

	// chi requires middleware before any route, and humachi mounts the docs routes on creation.
	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("ListenUp Player", s.version)
	humaConfig.Info.Description = "Remote control for a ListenUp podcast player"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, e.g. for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.limiter != nil {
		s.router.Use(s.rateLimit())
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerRemoteRoutes()
	s.registerInterruptionRoutes()
	s.registerEpisodeRoutes()
	s.registerQueueRoutes()

	// The event stream is raw SSE and stays outside huma.
	if s.events != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.events, s.logger).ServeHTTP)
	}
}

// Publish implements nowplaying.Sink.
func (s *Server) Publish(snap nowplaying.Snapshot) {
	s.mu.Lock()
	s.nowPlaying = snap
	s.mu.Unlock()
}

// RegisterRemoteCommands implements nowplaying.Sink.
func (s *Server) RegisterRemoteCommands(cmds nowplaying.RemoteCommands) {
	s.mu.Lock()
	s.commands = cmds
	s.mu.Unlock()
}

func (s *Server) remote() (nowplaying.RemoteCommands, nowplaying.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commands, s.nowPlaying
}
