package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/nowplaying"
)

// transportAction is a remote command without arguments.
type transportAction struct {
	id      string
	path    string
	summary string
	pick    func(nowplaying.RemoteCommands) func(context.Context) error
}

var transportActions = []transportAction{
	{
		id:      "remotePlay",
		path:    "/api/v1/remote/play",
		summary: "Play",
		pick:    func(c nowplaying.RemoteCommands) func(context.Context) error { return c.Play },
	},
	{
		id:      "remotePause",
		path:    "/api/v1/remote/pause",
		summary: "Pause",
		pick:    func(c nowplaying.RemoteCommands) func(context.Context) error { return c.Pause },
	},
	{
		id:      "remoteToggle",
		path:    "/api/v1/remote/toggle",
		summary: "Toggle play/pause",
		pick:    func(c nowplaying.RemoteCommands) func(context.Context) error { return c.TogglePlayPause },
	},
	{
		id:      "remoteChapterStart",
		path:    "/api/v1/remote/chapter-start",
		summary: "Skip to chapter start",
		pick:    func(c nowplaying.RemoteCommands) func(context.Context) error { return c.ChapterStart },
	},
}

func (s *Server) registerRemoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getNowPlaying",
		Method:      http.MethodGet,
		Path:        "/api/v1/now-playing",
		Summary:     "Now playing",
		Description: "Returns the last published now-playing snapshot and the live playback state",
		Tags:        []string{"Remote"},
	}, s.handleNowPlaying)

	for _, action := range transportActions {
		huma.Register(s.api, huma.Operation{
			OperationID:   action.id,
			Method:        http.MethodPost,
			Path:          action.path,
			Summary:       action.summary,
			Tags:          []string{"Remote"},
			DefaultStatus: http.StatusNoContent,
		}, s.transportHandler(action))
	}

	huma.Register(s.api, huma.Operation{
		OperationID:   "remoteSeek",
		Method:        http.MethodPost,
		Path:          "/api/v1/remote/seek",
		Summary:       "Seek",
		Description:   "Seeks to an absolute position in seconds; clamped to the episode duration",
		Tags:          []string{"Remote"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleSeek)

	huma.Register(s.api, huma.Operation{
		OperationID:   "remoteSkip",
		Method:        http.MethodPost,
		Path:          "/api/v1/remote/skip",
		Summary:       "Skip",
		Description:   "Skips forward or back; seconds defaults to the player's configured interval",
		Tags:          []string{"Remote"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleSkip)
}

// === DTOs ===

// NowPlayingResponse contains the media-center view and the coordinator state.
type NowPlayingResponse struct {
	NowPlaying  nowplaying.Snapshot  `json:"now_playing" doc:"Last published now-playing snapshot"`
	State       domain.PlaybackState `json:"state" doc:"Live playback state"`
	RemoteReady bool                 `json:"remote_ready" doc:"Whether remote commands are registered"`
}

// NowPlayingOutput wraps the now-playing response for Huma.
type NowPlayingOutput struct {
	Body NowPlayingResponse
}

// SeekRequest is the request body for seeking.
type SeekRequest struct {
	Position float64 `json:"position" minimum:"0" validate:"gte=0" doc:"Target position in seconds"`
}

// SeekInput wraps the seek request for Huma.
type SeekInput struct {
	Body SeekRequest
}

// SkipRequest is the request body for relative skips.
type SkipRequest struct {
	Direction string  `json:"direction" enum:"forward,back" validate:"required,oneof=forward back" doc:"Skip direction"`
	Seconds   float64 `json:"seconds,omitempty" minimum:"0" validate:"gte=0" doc:"Seconds to skip; 0 uses the default"`
}

// SkipInput wraps the skip request for Huma.
type SkipInput struct {
	Body SkipRequest
}

// === Handlers ===

func (s *Server) handleNowPlaying(_ context.Context, _ *struct{}) (*NowPlayingOutput, error) {
	cmds, snap := s.remote()

	resp := NowPlayingResponse{
		NowPlaying:  snap,
		RemoteReady: cmds.Play != nil,
	}
	if s.player != nil {
		resp.State = s.player.Snapshot()
	}
	return &NowPlayingOutput{Body: resp}, nil
}

func (s *Server) transportHandler(action transportAction) func(context.Context, *struct{}) (*struct{}, error) {
	return func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		cmds, _ := s.remote()
		fn := action.pick(cmds)
		if fn == nil {
			return nil, errNoRemote
		}
		return nil, toAPIError(fn(ctx))
	}
}

func (s *Server) handleSeek(ctx context.Context, input *SeekInput) (*struct{}, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}

	cmds, _ := s.remote()
	if cmds.Seek == nil {
		return nil, errNoRemote
	}
	return nil, toAPIError(cmds.Seek(ctx, input.Body.Position))
}

func (s *Server) handleSkip(ctx context.Context, input *SkipInput) (*struct{}, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toAPIError(err)
	}

	cmds, _ := s.remote()
	skip := cmds.SkipForward
	if input.Body.Direction == "back" {
		skip = cmds.SkipBack
	}
	if skip == nil {
		return nil, errNoRemote
	}
	return nil, toAPIError(skip(ctx, input.Body.Seconds))
}
