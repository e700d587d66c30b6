package domain

// Phase is a step of the coordinator's episode lifecycle.
type Phase string

// Coordinator phases: Idle -> Loading -> Ready -> Playing <-> Paused -> (Switching | Finished).
const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseReady     Phase = "ready"
	PhasePlaying   Phase = "playing"
	PhasePaused    Phase = "paused"
	PhaseSwitching Phase = "switching"
	PhaseFinished  Phase = "finished"
)

// PlaybackState is the coordinator-owned transient view of the active episode.
// It is rebuilt whenever the active episode changes and never persisted directly.
type PlaybackState struct {
	EpisodeID       string   `json:"episode_id"`
	Title           string   `json:"title"`
	PodcastTitle    string   `json:"podcast_title"`
	Phase           Phase    `json:"phase"`
	Position        float64  `json:"position"`
	Duration        float64  `json:"duration"`
	Rate            float64  `json:"rate"`
	Current         *Chapter `json:"current_chapter,omitempty"`
	Next            *Chapter `json:"next_chapter,omitempty"`
	Previous        *Chapter `json:"previous_chapter,omitempty"`
	ChapterProgress float64  `json:"chapter_progress"`
}

// Active reports whether an episode is loaded.
func (s PlaybackState) Active() bool {
	return s.EpisodeID != ""
}

// Progress returns the episode progress fraction.
func (s PlaybackState) Progress() float64 {
	return ProgressAt(s.Position, s.Duration)
}
