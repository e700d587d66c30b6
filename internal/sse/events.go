// Package sse streams playback events to remote-control clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventPlaybackState is emitted when the coordinator phase changes.
	EventPlaybackState EventType = "playback.state"
	// EventPlaybackEpisode is emitted when a new episode becomes active.
	EventPlaybackEpisode EventType = "playback.episode"
	// EventPlaybackChapter is emitted when the current chapter changes.
	EventPlaybackChapter EventType = "playback.chapter"
	// EventChapterSkipped is emitted after an auto-skip seek.
	EventChapterSkipped EventType = "playback.chapter_skipped"
	// EventPlaybackPosition carries a persisted position sample.
	EventPlaybackPosition EventType = "playback.position"

	// EventQueueChanged is emitted whenever the playlist is modified.
	EventQueueChanged EventType = "queue.changed"

	// EventSessionRecovered is emitted once per session closed by startup recovery.
	EventSessionRecovered EventType = "session.recovered"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// StateEventData is the payload for playback.state.
type StateEventData struct {
	EpisodeID string       `json:"episode_id,omitempty"`
	Phase     domain.Phase `json:"phase"`
	Position  float64      `json:"position"`
	Rate      float64      `json:"rate"`
}

// EpisodeEventData is the payload for playback.episode.
type EpisodeEventData struct {
	Episode  *domain.Episode `json:"episode"`
	Chapters int             `json:"chapters"`
}

// ChapterEventData is the payload for playback.chapter.
type ChapterEventData struct {
	EpisodeID string          `json:"episode_id"`
	Current   *domain.Chapter `json:"current,omitempty"`
	Next      *domain.Chapter `json:"next,omitempty"`
	Previous  *domain.Chapter `json:"previous,omitempty"`
}

// ChapterSkippedEventData is the payload for playback.chapter_skipped.
type ChapterSkippedEventData struct {
	EpisodeID string  `json:"episode_id"`
	Title     string  `json:"title"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
}

// PositionEventData is the payload for playback.position.
type PositionEventData struct {
	EpisodeID string  `json:"episode_id"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
}

// QueueEventData is the payload for queue.changed.
type QueueEventData struct {
	Entries []domain.QueueEntry `json:"entries"`
}

// SessionRecoveredEventData is the payload for session.recovered.
type SessionRecoveredEventData struct {
	Session *domain.PlaySession `json:"session"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewStateEvent creates a playback.state event.
func NewStateEvent(state domain.PlaybackState) Event {
	return newEvent(EventPlaybackState, StateEventData{
		EpisodeID: state.EpisodeID,
		Phase:     state.Phase,
		Position:  state.Position,
		Rate:      state.Rate,
	})
}

// NewEpisodeEvent creates a playback.episode event.
func NewEpisodeEvent(episode *domain.Episode, chapterCount int) Event {
	return newEvent(EventPlaybackEpisode, EpisodeEventData{Episode: episode, Chapters: chapterCount})
}

// NewChapterEvent creates a playback.chapter event.
func NewChapterEvent(state domain.PlaybackState) Event {
	return newEvent(EventPlaybackChapter, ChapterEventData{
		EpisodeID: state.EpisodeID,
		Current:   state.Current,
		Next:      state.Next,
		Previous:  state.Previous,
	})
}

// NewChapterSkippedEvent creates a playback.chapter_skipped event.
func NewChapterSkippedEvent(episodeID, title string, from, to float64) Event {
	return newEvent(EventChapterSkipped, ChapterSkippedEventData{
		EpisodeID: episodeID,
		Title:     title,
		From:      from,
		To:        to,
	})
}

// NewPositionEvent creates a playback.position event.
func NewPositionEvent(episodeID string, position, duration float64) Event {
	return newEvent(EventPlaybackPosition, PositionEventData{
		EpisodeID: episodeID,
		Position:  position,
		Duration:  duration,
	})
}

// NewQueueChangedEvent creates a queue.changed event.
func NewQueueChangedEvent(entries []domain.QueueEntry) Event {
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	return newEvent(EventQueueChanged, QueueEventData{Entries: entries})
}

// NewSessionRecoveredEvent creates a session.recovered event.
func NewSessionRecoveredEvent(session *domain.PlaySession) Event {
	return newEvent(EventSessionRecovered, SessionRecoveredEventData{Session: session})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
