// Package domain contains the playback entities shared by the engine, coordinator and session tracker.
package domain

import "time"

// FinishedThreshold is the progress fraction past which an episode being
// switched away from counts as played instead of "resume later".
const FinishedThreshold = 0.95

// Episode is the snapshot the episode store hands to the playback core.
// Positions and durations are seconds.
type Episode struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	PodcastTitle string     `json:"podcast_title"`
	Source       string     `json:"source"`
	Duration     float64    `json:"duration"` // 0 when unknown
	PlayPosition float64    `json:"play_position"`
	MaxPosition  float64    `json:"max_position"` // furthest position ever recorded
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
	Played       bool       `json:"played"`
	PlayedAt     *time.Time `json:"played_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasDuration reports whether the episode duration is known.
func (e *Episode) HasDuration() bool {
	return e.Duration > 0
}

// Progress returns PlayPosition as a fraction of Duration, or 0 when the duration is unknown.
func (e *Episode) Progress() float64 {
	return ProgressAt(e.PlayPosition, e.Duration)
}

// ProgressAt returns position/duration, or 0 when duration is unknown.
func ProgressAt(position, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return position / duration
}

// QueuePosition selects which end of the playlist an entry goes to.
type QueuePosition string

const (
	// QueueFront puts the entry first (resume-later semantics).
	QueueFront QueuePosition = "front"
	// QueueEnd appends the entry.
	QueueEnd QueuePosition = "end"
)

// Valid reports whether p is a known queue position.
func (p QueuePosition) Valid() bool {
	return p == QueueFront || p == QueueEnd
}

// QueueEntry is one pending episode in the playlist.
type QueueEntry struct {
	EpisodeID string    `json:"episode_id"`
	Position  int       `json:"position"`
	AddedAt   time.Time `json:"added_at"`
}
