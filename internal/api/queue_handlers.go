package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/domain"
)

func (s *Server) registerQueueRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getQueue",
		Method:      http.MethodGet,
		Path:        "/api/v1/queue",
		Summary:     "Get queue",
		Description: "Returns the pending episodes in play order",
		Tags:        []string{"Queue"},
	}, s.handleGetQueue)

	huma.Register(s.api, huma.Operation{
		OperationID: "enqueueEpisode",
		Method:      http.MethodPost,
		Path:        "/api/v1/queue",
		Summary:     "Enqueue episode",
		Description: "Adds an episode to the front or end of the queue, moving it if already queued",
		Tags:        []string{"Queue"},
	}, s.handleEnqueue)

	huma.Register(s.api, huma.Operation{
		OperationID:   "dequeueEpisode",
		Method:        http.MethodDelete,
		Path:          "/api/v1/queue/{id}",
		Summary:       "Remove from queue",
		Tags:          []string{"Queue"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDequeue)
}

// === DTOs ===

// QueueResponse contains the queue.
type QueueResponse struct {
	Entries []domain.QueueEntry `json:"entries" doc:"Queued episodes in play order"`
}

// QueueOutput wraps the queue response for Huma.
type QueueOutput struct {
	Body QueueResponse
}

// EnqueueRequest is the request body for enqueuing.
type EnqueueRequest struct {
	EpisodeID string `json:"episode_id" minLength:"1" validate:"required" doc:"Episode ID"`
	Position  string `json:"position,omitempty" enum:"front,end" validate:"omitempty,oneof=front end" doc:"Queue end to insert at; defaults to end"`
}

// EnqueueInput wraps the enqueue request for Huma.
type EnqueueInput struct {
	Body EnqueueRequest
}

// DequeueInput contains parameters for removing a queue entry.
type DequeueInput struct {
	ID string `path:"id" doc:"Episode ID"`
}

// === Handlers ===

func (s *Server) handleGetQueue(ctx context.Context, _ *struct{}) (*QueueOutput, error) {
	return s.queue(ctx)
}

func (s *Server) handleEnqueue(ctx context.Context, input *EnqueueInput) (*QueueOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}

	at := domain.QueueEnd
	if input.Body.Position != "" {
		at = domain.QueuePosition(input.Body.Position)
	}
	if err := s.player.Enqueue(ctx, input.Body.EpisodeID, at); err != nil {
		return nil, toAPIError(err)
	}
	return s.queue(ctx)
}

func (s *Server) handleDequeue(ctx context.Context, input *DequeueInput) (*struct{}, error) {
	return nil, toAPIError(s.player.Dequeue(ctx, input.ID))
}

func (s *Server) queue(ctx context.Context) (*QueueOutput, error) {
	entries, err := s.player.Queue(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	return &QueueOutput{Body: QueueResponse{Entries: entries}}, nil
}
