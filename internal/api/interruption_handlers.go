package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/engine"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
)

// SignalRouter accepts raw audio focus and route signals from the host.
type SignalRouter interface {
	HandleSignal(ctx context.Context, sig engine.Signal) error
}

var signalKinds = map[string]engine.SignalKind{
	"focus_lost":    engine.SignalFocusLost,
	"focus_gained":  engine.SignalFocusGained,
	"focus_revoked": engine.SignalFocusRevoked,
	"route_changed": engine.SignalRouteChanged,
}

var routeReasons = map[string]engine.RouteChangeReason{
	"":                    engine.RouteOther,
	"other":               engine.RouteOther,
	"device_connected":    engine.RouteDeviceConnected,
	"device_disconnected": engine.RouteDeviceDisconnected,
}

func (s *Server) registerInterruptionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "remoteInterruption",
		Method:        http.MethodPost,
		Path:          "/api/v1/remote/interruption",
		Summary:       "Audio interruption",
		Description:   "Forwards an audio focus or output route signal from the host to the playback engine",
		Tags:          []string{"Remote"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleInterruption)
}

// InterruptionRequest is a raw host audio signal.
type InterruptionRequest struct {
	Signal       string `json:"signal" enum:"focus_lost,focus_gained,focus_revoked,route_changed" validate:"required,oneof=focus_lost focus_gained focus_revoked route_changed" doc:"Signal kind"`
	ShouldResume bool   `json:"should_resume,omitempty" doc:"For focus_gained: whether playback should resume"`
	Reason       string `json:"reason,omitempty" enum:"other,device_connected,device_disconnected" validate:"omitempty,oneof=other device_connected device_disconnected" doc:"For route_changed: why the route changed"`
}

// InterruptionInput wraps the interruption request for Huma.
type InterruptionInput struct {
	Body InterruptionRequest
}

func (s *Server) handleInterruption(ctx context.Context, input *InterruptionInput) (*struct{}, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}
	if s.signals == nil {
		return nil, toAPIError(domainerrors.Unavailable("audio signals are not routed to an engine"))
	}

	sig := engine.Signal{
		Kind:         signalKinds[input.Body.Signal],
		ShouldResume: input.Body.ShouldResume,
		Reason:       routeReasons[input.Body.Reason],
	}
	return nil, toAPIError(s.signals.HandleSignal(ctx, sig))
}
