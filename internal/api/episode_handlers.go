package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
)

func (s *Server) registerEpisodeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "playEpisode",
		Method:      http.MethodPost,
		Path:        "/api/v1/episodes/{id}/play",
		Summary:     "Play episode",
		Description: "Switches to the episode, resuming at its saved position",
		Tags:        []string{"Episodes"},
	}, s.handlePlayEpisode)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEpisodeSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/episodes/{id}/sessions",
		Summary:     "Episode listening sessions",
		Description: "Returns the recorded play sessions and aggregate listening stats for an episode",
		Tags:        []string{"Episodes"},
	}, s.handleGetSessions)
}

// === DTOs ===

// PlayEpisodeInput contains parameters for switching episodes.
type PlayEpisodeInput struct {
	ID       string `path:"id" doc:"Episode ID"`
	Autoplay bool   `query:"autoplay" default:"true" doc:"Start playing once loaded"`
}

// PlaybackOutput wraps the playback state for Huma.
type PlaybackOutput struct {
	Body domain.PlaybackState
}

// GetSessionsInput contains parameters for reading sessions.
type GetSessionsInput struct {
	ID string `path:"id" doc:"Episode ID"`
}

// SessionsResponse lists sessions with their aggregate.
type SessionsResponse struct {
	Sessions []*domain.PlaySession `json:"sessions" doc:"Play sessions, oldest first"`
	Stats    domain.SessionStats   `json:"stats" doc:"Aggregate listening stats"`
}

// SessionsOutput wraps the sessions response for Huma.
type SessionsOutput struct {
	Body SessionsResponse
}

// === Handlers ===

func (s *Server) handlePlayEpisode(ctx context.Context, input *PlayEpisodeInput) (*PlaybackOutput, error) {
	if err := s.player.PlayEpisode(ctx, input.ID, input.Autoplay); err != nil {
		return nil, toAPIError(err)
	}

	// Unknown or unplayable episodes are a silent no-op for the player itself.
	state := s.player.Snapshot()
	if state.EpisodeID != input.ID {
		return nil, toAPIError(domainerrors.NotFoundf("episode %s could not be loaded", input.ID))
	}
	return &PlaybackOutput{Body: state}, nil
}

func (s *Server) handleGetSessions(ctx context.Context, input *GetSessionsInput) (*SessionsOutput, error) {
	if s.sessions == nil {
		return nil, toAPIError(domainerrors.Unavailable("session history is not configured"))
	}

	sessions, err := s.sessions.Sessions(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	stats, err := s.sessions.Stats(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	if sessions == nil {
		sessions = []*domain.PlaySession{}
	}

	return &SessionsOutput{Body: SessionsResponse{Sessions: sessions, Stats: stats}}, nil
}
