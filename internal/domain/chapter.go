package domain

import "time"

// Chapter is a named interval within an episode.
// Within one episode the list is ordered by Start ascending.
type Chapter struct {
	ID         string     `json:"id"`
	EpisodeID  string     `json:"episode_id"`
	Index      int        `json:"index"`
	Start      float64    `json:"start"`
	Duration   *float64   `json:"duration,omitempty"` // as reported by the extractor
	Title      string     `json:"title"`
	ShouldPlay bool       `json:"should_play"`
	Skipped    bool       `json:"skipped"`
	SkippedAt  *time.Time `json:"skipped_at,omitempty"`
}

// SameAs reports whether two chapter references point at the same chapter.
// Nil references are equal only to each other.
func (c *Chapter) SameAs(other *Chapter) bool {
	if c == nil || other == nil {
		return c == nil && other == nil
	}
	if c.ID != "" || other.ID != "" {
		return c.ID == other.ID
	}
	return c.Index == other.Index && c.Start == other.Start
}
