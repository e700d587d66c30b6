package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ClockTransport is a headless Transport that advances the position from a
// clock at the current rate. It stops at the item's duration and reports Finished.
type ClockTransport struct {
	prober Prober
	now    func() time.Time

	item     Item
	loaded   bool
	playing  bool
	rate     float64
	anchor   float64
	anchorAt time.Time
}

// NewClockTransport creates a transport; now defaults to time.Now.
func NewClockTransport(prober Prober, now func() time.Time) *ClockTransport {
	if now == nil {
		now = time.Now
	}
	return &ClockTransport{prober: prober, now: now, rate: 1.0}
}

// Load probes the source and makes it current, paused at 0.
func (t *ClockTransport) Load(ctx context.Context, source string) (Item, error) {
	if source == "" {
		return Item{}, errors.New("empty source")
	}

	var duration float64
	if t.prober != nil {
		d, err := t.prober.Probe(ctx, source)
		if err != nil {
			return Item{}, err
		}
		duration = d
	}
	if duration < 0 {
		return Item{}, fmt.Errorf("negative duration %v for %s", duration, source)
	}

	t.item = Item{Source: source, Duration: duration}
	t.loaded = true
	t.playing = false
	t.anchor = 0
	t.anchorAt = t.now()
	return t.item, nil
}

// Play starts advancing the position.
func (t *ClockTransport) Play() error {
	if !t.loaded {
		return errors.New("nothing loaded")
	}
	if t.playing {
		return nil
	}
	t.anchorAt = t.now()
	t.playing = !t.Finished()
	return nil
}

// Pause freezes the position.
func (t *ClockTransport) Pause() error {
	if !t.playing {
		return nil
	}
	t.anchor = t.Position()
	t.anchorAt = t.now()
	t.playing = false
	return nil
}

// SetRate changes the speed without moving the position.
func (t *ClockTransport) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid rate %v", rate)
	}
	t.anchor = t.Position()
	t.anchorAt = t.now()
	t.rate = rate
	return nil
}

// Seek moves to position, clamped to the item bounds.
func (t *ClockTransport) Seek(position float64) error {
	if !t.loaded {
		return errors.New("nothing loaded")
	}
	t.anchor = t.clamp(position)
	t.anchorAt = t.now()
	return nil
}

// Position returns the current position in seconds.
func (t *ClockTransport) Position() float64 {
	if !t.playing {
		return t.anchor
	}
	elapsed := t.now().Sub(t.anchorAt).Seconds()
	return t.clamp(t.anchor + elapsed*t.rate)
}

// Playing reports whether the position is advancing.
func (t *ClockTransport) Playing() bool {
	return t.playing && !t.Finished()
}

// Finished reports whether the item played to its known duration.
func (t *ClockTransport) Finished() bool {
	return t.loaded && t.item.Duration > 0 && t.Position() >= t.item.Duration
}

func (t *ClockTransport) clamp(position float64) float64 {
	if position < 0 {
		return 0
	}
	if t.item.Duration > 0 && position > t.item.Duration {
		return t.item.Duration
	}
	return position
}
