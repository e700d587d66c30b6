// Package nowplaying publishes the active episode to media-center surfaces and
// routes their remote transport commands back to the player.
package nowplaying

import (
	"context"
	"log/slog"
	"sync"
)

// Snapshot is what a media center displays.
type Snapshot struct {
	EpisodeID string  `json:"episode_id,omitempty"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Chapter   string  `json:"chapter,omitempty"`
	Duration  float64 `json:"duration"`
	Elapsed   float64 `json:"elapsed"`
	Rate      float64 `json:"rate"`
	Playing   bool    `json:"playing"`
}

// Empty reports whether nothing is loaded.
func (s Snapshot) Empty() bool {
	return s.EpisodeID == ""
}

// RemoteCommands are the transport callbacks a sink may invoke.
// Every callback is safe to call from any goroutine and repeated calls are harmless.
type RemoteCommands struct {
	Play            func(ctx context.Context) error
	Pause           func(ctx context.Context) error
	TogglePlayPause func(ctx context.Context) error
	Seek            func(ctx context.Context, position float64) error
	SkipForward     func(ctx context.Context, seconds float64) error
	SkipBack        func(ctx context.Context, seconds float64) error
	ChapterStart    func(ctx context.Context) error
}

// Sink receives snapshots and remote-command registrations.
type Sink interface {
	Publish(s Snapshot)
	RegisterRemoteCommands(cmds RemoteCommands)
}

// LogSink writes snapshots to the log. Useful headless and in development.
type LogSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	cmds RemoteCommands
}

// NewLogSink creates a sink that logs at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish implements Sink.
func (l *LogSink) Publish(s Snapshot) {
	if s.Empty() {
		l.logger.Debug("now playing cleared")
		return
	}
	l.logger.Debug("now playing",
		slog.String("title", s.Title),
		slog.String("artist", s.Artist),
		slog.String("chapter", s.Chapter),
		slog.Float64("elapsed", s.Elapsed),
		slog.Float64("duration", s.Duration),
		slog.Float64("rate", s.Rate),
		slog.Bool("playing", s.Playing),
	)
}

// RegisterRemoteCommands implements Sink.
func (l *LogSink) RegisterRemoteCommands(cmds RemoteCommands) {
	l.mu.Lock()
	l.cmds = cmds
	l.mu.Unlock()
	l.logger.Info("remote commands registered")
}

// Commands returns the registered remote commands.
func (l *LogSink) Commands() RemoteCommands {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmds
}
