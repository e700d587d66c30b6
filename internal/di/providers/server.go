package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/api"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/mdns"
	"github.com/listenupapp/listenup-player/internal/ratelimit"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// HTTPServerHandle wraps http.Server with Shutdownable. Server is nil when
// the remote API is disabled.
type HTTPServerHandle struct {
	*http.Server
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	if h.Server == nil {
		return nil
	}
	defer h.limiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the remote-control HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Remote.Enabled {
		log.Info("Remote API disabled by configuration")
		return &HTTPServerHandle{}, nil
	}

	coord := do.MustInvoke[*CoordinatorHandle](i)
	tracker := do.MustInvoke[*TrackerHandle](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	eng := do.MustInvoke[*EngineHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	limiter := ratelimit.New(cfg.Remote.RequestsPerSecond, cfg.Remote.Burst)

	handler := api.NewServer(api.Config{
		Player:    coord.Coordinator,
		Sessions:  tracker.Tracker,
		Library:   lib.Store,
		Signals:   eng.Engine,
		Events:    sseHandle.Manager,
		Limiter:   limiter,
		Validator: validator,
		Logger:    log.Component("api"),
		Version:   Version,
	})

	// The server mirrors the latest snapshot and dispatches remote commands.
	coord.Publisher().AddSink(handler)

	srv := &http.Server{
		Addr:         ":" + cfg.Remote.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Remote.ReadTimeout,
		WriteTimeout: cfg.Remote.WriteTimeout,
		IdleTimeout:  cfg.Remote.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
	started bool
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.started && h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService advertises the remote API on the local network.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	inst := do.MustInvoke[*domain.Instance](i)

	if !cfg.Remote.Enabled || !cfg.Remote.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{}, nil
	}

	port, err := strconv.Atoi(cfg.Remote.Port)
	if err != nil {
		log.Warn("Failed to parse remote port for mDNS, skipping advertisement", "port", cfg.Remote.Port)
		return &MDNSServiceHandle{}, nil
	}

	svc := mdns.NewService(log.Component("mdns"))
	if err := svc.Start(mdns.Advertisement{
		ID:      inst.ID,
		Name:    inst.Name,
		Version: inst.Version,
		Port:    port,
	}); err != nil {
		// Non-fatal: the API works without discovery (containers, no multicast).
		log.Warn("mDNS advertisement unavailable", "error", err)
		return &MDNSServiceHandle{Service: svc, started: false}, nil
	}

	return &MDNSServiceHandle{Service: svc, started: true}, nil
}
