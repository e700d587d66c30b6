// Package engine owns the audio transport. Every command runs on one worker
// goroutine, so transport state is never mutated concurrently.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/listenup-player/internal/errors"
)

// Status is a point-in-time view of the transport.
type Status struct {
	Item     Item    `json:"item"`
	Loaded   bool    `json:"loaded"`
	Playing  bool    `json:"playing"`
	Active   bool    `json:"active"` // false while an interruption holds the output
	Rate     float64 `json:"rate"`
	Position float64 `json:"position"`
	Ended    bool    `json:"ended"`
}

const stopTimeout = time.Second

type request struct {
	run  func(ctx context.Context) error
	done chan error
}

// Engine serializes access to a Transport.
type Engine struct {
	transport Transport
	logger    *slog.Logger

	reqs       chan request
	interrupts chan Interruption

	handlerMu sync.RWMutex
	handler   Handler

	// worker-owned
	item   Item
	loaded bool
	active bool
	rate   float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine around transport. Call Start before issuing commands.
func New(transport Transport, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		transport:  transport,
		logger:     logger,
		reqs:       make(chan request),
		interrupts: make(chan Interruption, 16),
		active:     true,
		rate:       1.0,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker and the interruption dispatcher.
func (e *Engine) Start() {
	e.wg.Add(2)
	go e.worker()
	go e.dispatch()
	e.logger.Info("playback engine started")
}

// Stop pauses the transport and shuts the worker down. Pending callers get CodeUnavailable.
func (e *Engine) Stop() {
	e.logger.Info("stopping playback engine")
	ctx, cancel := context.WithTimeout(e.ctx, stopTimeout)
	_ = e.Pause(ctx)
	cancel()
	e.cancel()
	e.wg.Wait()
	e.logger.Info("playback engine stopped")
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case req := <-e.reqs:
			req.done <- e.execute(req)
		}
	}
}

// execute runs one request. A panicking transport is reported as an error to the
// caller instead of taking the worker down.
func (e *Engine) execute(req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("transport panic", slog.Any("panic", r))
			err = errors.Internalf("transport panic: %v", r)
		}
	}()
	// Accepted requests run to completion; the caller's ctx only bounds the wait.
	return req.run(e.ctx)
}

// do queues fn on the worker and waits for its result.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context) error) error {
	req := request{run: fn, done: make(chan error, 1)}

	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeCanceled, "engine request")
	case <-e.ctx.Done():
		return errors.Unavailable("engine stopped")
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeCanceled, "engine request")
	case <-e.ctx.Done():
		return errors.Unavailable("engine stopped")
	}
}

// Play starts or resumes output and reactivates it after an interruption.
func (e *Engine) Play(ctx context.Context) error {
	return e.do(ctx, func(context.Context) error {
		if !e.loaded {
			return errors.Conflict("no item loaded")
		}
		e.active = true
		if e.transport.Playing() {
			return nil
		}
		if err := e.transport.Play(); err != nil {
			return errors.Wrap(err, errors.CodeUnavailable, "play")
		}
		return nil
	})
}

// Pause stops output. Pausing a paused or empty engine is a no-op.
func (e *Engine) Pause(ctx context.Context) error {
	return e.do(ctx, func(context.Context) error {
		return e.pause()
	})
}

func (e *Engine) pause() error {
	if !e.loaded || !e.transport.Playing() {
		return nil
	}
	if err := e.transport.Pause(); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "pause")
	}
	return nil
}

// SetRate changes the playback rate.
func (e *Engine) SetRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return errors.Validationf("rate must be positive, got %v", rate)
	}
	return e.do(ctx, func(context.Context) error {
		if rate == e.rate {
			return nil
		}
		if err := e.transport.SetRate(rate); err != nil {
			return errors.Wrap(err, errors.CodeUnavailable, "set rate")
		}
		e.rate = rate
		return nil
	})
}

// Seek moves to position. Once accepted, a seek completes even if ctx is canceled.
func (e *Engine) Seek(ctx context.Context, position float64) error {
	return e.do(ctx, func(context.Context) error {
		if !e.loaded {
			return errors.Conflict("no item loaded")
		}
		if err := e.transport.Seek(position); err != nil {
			return errors.Wrap(err, errors.CodeUnavailable, "seek")
		}
		return nil
	})
}

// ReplaceItem loads source in place of the current item. On failure the previous
// item is left intact and a CodeUnavailable error is returned.
func (e *Engine) ReplaceItem(ctx context.Context, source string) (Item, error) {
	var item Item
	err := e.do(ctx, func(wctx context.Context) error {
		loadCtx, cancel := mergeCancel(wctx, ctx)
		defer cancel()

		loaded, err := e.transport.Load(loadCtx, source)
		if err != nil {
			e.logger.Warn("failed to load source",
				slog.String("source", source),
				slog.String("error", err.Error()))
			return errors.Wrapf(err, errors.CodeUnavailable, "load %s", source)
		}
		if e.rate != 1.0 {
			if err := e.transport.SetRate(e.rate); err != nil {
				e.logger.Warn("failed to carry rate over to new item", slog.String("error", err.Error()))
			}
		}
		e.item = loaded
		e.loaded = true
		item = loaded
		return nil
	})
	return item, err
}

// Status returns the current transport state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func(context.Context) error {
		st = e.status()
		return nil
	})
	return st, err
}

func (e *Engine) status() Status {
	st := Status{Item: e.item, Loaded: e.loaded, Active: e.active, Rate: e.rate}
	if e.loaded {
		st.Playing = e.transport.Playing()
		st.Position = e.transport.Position()
		st.Ended = e.transport.Finished()
	}
	return st
}

// OnInterruption registers the interruption handler, replacing any previous one.
func (e *Engine) OnInterruption(h Handler) {
	e.handlerMu.Lock()
	e.handler = h
	e.handlerMu.Unlock()
}

// HandleSignal translates a raw host signal, applies its effect on the worker
// and delivers the interruption to the handler asynchronously.
func (e *Engine) HandleSignal(ctx context.Context, sig Signal) error {
	intr, ok := Translate(sig)
	if !ok {
		e.logger.Debug("ignoring audio signal", slog.Int("kind", int(sig.Kind)))
		return nil
	}

	err := e.do(ctx, func(context.Context) error {
		switch intr {
		case InterruptionBegan, InterruptionFinished:
			e.active = false
			return e.pause()
		case InterruptionResume:
			e.active = true
			if e.loaded && !e.transport.Playing() {
				if err := e.transport.Play(); err != nil {
					return errors.Wrap(err, errors.CodeUnavailable, "resume")
				}
			}
		case InterruptionEnded:
			e.active = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	select {
	case e.interrupts <- intr:
	default:
		e.logger.Warn("interruption queue full, dropping", slog.String("interruption", intr.String()))
	}
	return nil
}

func (e *Engine) dispatch() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case intr := <-e.interrupts:
			e.handlerMu.RLock()
			h := e.handler
			e.handlerMu.RUnlock()

			e.logger.Info("audio interruption", slog.String("interruption", intr.String()))
			if h != nil {
				h(intr)
			}
		}
	}
}

// mergeCancel returns a context canceled when either parent is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// String implements fmt.Stringer for log output.
func (s Status) String() string {
	return fmt.Sprintf("loaded=%t playing=%t pos=%.2f rate=%.2f", s.Loaded, s.Playing, s.Position, s.Rate)
}
