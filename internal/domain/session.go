package domain

import "time"

// MinRecoveryRate bounds the rate used to back-fill segment end times.
const MinRecoveryRate = 0.1

// RateSegment is a sub-span of a session played at one constant rate.
type RateSegment struct {
	Rate          float64    `json:"rate" validate:"gte=0"`
	StartTime     time.Time  `json:"start_time" validate:"required"`
	StartPosition float64    `json:"start_position" validate:"gte=0"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	EndPosition   *float64   `json:"end_position,omitempty"`
}

// IsOpen reports whether the segment has not been closed yet.
func (s *RateSegment) IsOpen() bool {
	return s.EndTime == nil
}

// EffectiveRate returns the segment rate for time estimates.
// Absent (zero or negative) rates count as 1.0; tiny rates are floored at MinRecoveryRate.
func (s *RateSegment) EffectiveRate() float64 {
	switch {
	case s.Rate <= 0:
		return 1.0
	case s.Rate < MinRecoveryRate:
		return MinRecoveryRate
	default:
		return s.Rate
	}
}

// close ends the segment at the given time and position.
func (s *RateSegment) close(at time.Time, position float64) {
	if at.Before(s.StartTime) {
		at = s.StartTime
	}
	s.EndTime = &at
	s.EndPosition = &position
}

// PlaySession is one continuous span of listening to one episode.
//
// Invariants: EndTime, when set, is not before StartTime; EndPosition, when set,
// is strictly greater than StartPosition; segments are time ordered.
type PlaySession struct {
	ID            string        `json:"id" validate:"required"`
	EpisodeID     string        `json:"episode_id" validate:"required"`
	StartTime     time.Time     `json:"start_time" validate:"required"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	StartPosition float64       `json:"start_position" validate:"gte=0"`
	EndPosition   *float64      `json:"end_position,omitempty"`
	Segments      []RateSegment `json:"segments" validate:"dive"`
	EndedCleanly  *bool         `json:"ended_cleanly,omitempty"`
}

// NewPlaySession opens a session with a first segment at the given rate.
func NewPlaySession(id, episodeID string, at time.Time, position, rate float64) *PlaySession {
	return &PlaySession{
		ID:            id,
		EpisodeID:     episodeID,
		StartTime:     at,
		StartPosition: position,
		Segments: []RateSegment{{
			Rate:          rate,
			StartTime:     at,
			StartPosition: position,
		}},
	}
}

// IsOpen reports whether the session has no end time.
func (s *PlaySession) IsOpen() bool {
	return s.EndTime == nil
}

// LastSegment returns the most recent segment, or nil if there are none.
func (s *PlaySession) LastSegment() *RateSegment {
	if len(s.Segments) == 0 {
		return nil
	}
	return &s.Segments[len(s.Segments)-1]
}

// ChangeRate closes the current segment and appends a new one when rate differs
// from the last segment's rate. Returns false when nothing changed.
func (s *PlaySession) ChangeRate(rate float64, at time.Time, position float64) bool {
	last := s.LastSegment()
	if last != nil && last.Rate == rate {
		return false
	}
	if last != nil && last.IsOpen() {
		last.close(at, position)
	}
	start := at
	if last != nil && last.EndTime != nil && start.Before(*last.EndTime) {
		start = *last.EndTime
	}
	s.Segments = append(s.Segments, RateSegment{
		Rate:          rate,
		StartTime:     start,
		StartPosition: position,
	})
	return true
}

// Close ends the last segment and the session.
// EndPosition is only recorded when listening moved past StartPosition.
func (s *PlaySession) Close(at time.Time, position float64, cleanly bool) {
	if last := s.LastSegment(); last != nil && last.IsOpen() {
		last.close(at, position)
	}
	if at.Before(s.StartTime) {
		at = s.StartTime
	}
	s.EndTime = &at
	if position > s.StartPosition {
		s.EndPosition = &position
	}
	s.EndedCleanly = &cleanly
}

// CloseInferred closes a session abandoned by an unclean shutdown at an inferred
// position. The end time is estimated from the last segment:
// start + (position - startPosition) / rate. EndedCleanly is set to false.
func (s *PlaySession) CloseInferred(position float64) {
	at := s.StartTime
	if last := s.LastSegment(); last != nil {
		at = last.StartTime
		if delta := position - last.StartPosition; delta > 0 {
			at = at.Add(time.Duration(delta / last.EffectiveRate() * float64(time.Second)))
		}
		last.EndTime = &at
		last.EndPosition = &position
	} else if delta := position - s.StartPosition; delta > 0 {
		at = at.Add(time.Duration(delta * float64(time.Second)))
	}

	s.EndTime = &at
	s.EndPosition = &position
	cleanly := false
	s.EndedCleanly = &cleanly
}

// ContentSeconds is the amount of episode audio covered by closed segments.
func (s *PlaySession) ContentSeconds() float64 {
	var total float64
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.EndPosition == nil {
			continue
		}
		if d := *seg.EndPosition - seg.StartPosition; d > 0 {
			total += d
		}
	}
	return total
}

// WallSeconds is the elapsed listening time covered by closed segments.
func (s *PlaySession) WallSeconds() float64 {
	var total float64
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.EndTime == nil {
			continue
		}
		total += seg.EndTime.Sub(seg.StartTime).Seconds()
	}
	return total
}

// SessionStats aggregates the listening history of one episode.
type SessionStats struct {
	EpisodeID      string  `json:"episode_id"`
	Sessions       int     `json:"sessions"`
	Open           int     `json:"open"`
	Unclean        int     `json:"unclean"`
	ContentSeconds float64 `json:"content_seconds"`
	WallSeconds    float64 `json:"wall_seconds"`
}

// Add folds a session into the stats.
func (st *SessionStats) Add(s *PlaySession) {
	st.Sessions++
	if s.IsOpen() {
		st.Open++
	}
	if s.EndedCleanly != nil && !*s.EndedCleanly {
		st.Unclean++
	}
	st.ContentSeconds += s.ContentSeconds()
	st.WallSeconds += s.WallSeconds()
}
