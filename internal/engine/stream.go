package engine

import (
	"context"
	"log/slog"
	"time"
)

// Sample is one position observation. The last sample of a finished item has Ended set.
type Sample struct {
	Position float64
	Rate     float64
	Playing  bool
	Ended    bool
}

// PositionStream polls the transport every interval until ctx is canceled or
// the item ends. The ending sample has Ended set and the channel is then closed.
// Each call starts an independent stream; the consumer cancels ctx to stop it.
func (e *Engine) PositionStream(ctx context.Context, interval time.Duration) <-chan Sample {
	out := make(chan Sample, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			st, err := e.Status(ctx)
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Debug("position stream stopped", slog.String("error", err.Error()))
				}
				return
			}
			if !st.Loaded {
				continue
			}

			sample := Sample{Position: st.Position, Rate: st.Rate, Playing: st.Playing, Ended: st.Ended}
			select {
			case out <- sample:
			case <-ctx.Done():
				return
			}
			if sample.Ended {
				return
			}
		}
	}()

	return out
}
