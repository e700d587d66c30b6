// Package mdns advertises the player's remote-control API on the local network.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the mDNS service type for ListenUp players.
	ServiceType = "_listenup-player._tcp"

	// APIVersion is the remote-control API version advertised in TXT records.
	APIVersion = "v1"
)

// Advertisement describes what is announced.
type Advertisement struct {
	ID      string
	Name    string
	Version string
	Port    int
}

// Service manages mDNS advertisement for the remote-control API.
type Service struct {
	server *mdns.Server
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new mDNS service.
func NewService(logger *slog.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Start begins advertising. It should be called after the HTTP server is listening.
// Errors are typically non-fatal (e.g., multicast not supported in Docker).
func (s *Service) Start(ad Advertisement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stop existing server if running (for restart scenarios)
	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = "listenup-player"
	}

	service, err := mdns.NewMDNSService(
		host,        // Instance name (hostname)
		ServiceType, // Service type
		"",          // Domain (empty = .local)
		"",          // Host (empty = use system hostname)
		ad.Port,
		nil, // IPs (nil = all interfaces)
		txtRecords(ad),
	)
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{
		Zone: service,
	})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}

	s.server = server

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", ad.Port,
		"name", ad.Name,
		"id", ad.ID,
	)

	return nil
}

// Running reports whether an advertisement is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Stop stops mDNS advertising.
// Safe to call multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
		s.logger.Info("mDNS advertisement stopped")
	}
}

func txtRecords(ad Advertisement) []string {
	records := []string{
		"id=" + ad.ID,
		"name=" + ad.Name,
		"api=" + APIVersion,
	}
	if ad.Version != "" {
		records = append(records, "version="+ad.Version)
	}
	return records
}
