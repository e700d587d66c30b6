package engine

import (
	"context"
	"fmt"

	"github.com/simonhull/audiometa"
)

// Item is the loaded source.
type Item struct {
	Source   string  `json:"source"`
	Duration float64 `json:"duration"` // 0 when unknown
}

// Transport is the raw audio output driven by the engine. Implementations are
// only called from the engine worker and need not be safe for concurrent use.
type Transport interface {
	// Load replaces the current item. On error the previous item stays loaded.
	Load(ctx context.Context, source string) (Item, error)
	Play() error
	Pause() error
	SetRate(rate float64) error
	Seek(position float64) error
	Position() float64
	Playing() bool
	// Finished reports whether the loaded item has played to its end.
	Finished() bool
}

// Prober resolves the duration of a source.
type Prober interface {
	Probe(ctx context.Context, source string) (float64, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, source string) (float64, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, source string) (float64, error) {
	return f(ctx, source)
}

// FileProber reads durations from local audio files.
type FileProber struct{}

// Probe opens the file and returns its duration in seconds.
func (FileProber) Probe(ctx context.Context, source string) (float64, error) {
	file, err := audiometa.OpenContext(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", source, err)
	}
	defer file.Close()

	return file.Audio.Duration.Seconds(), nil
}
