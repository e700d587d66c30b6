package mdns

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "_listenup-player._tcp", ServiceType)
	assert.Equal(t, "v1", APIVersion)
}

func TestTxtRecords(t *testing.T) {
	t.Run("includes identity and api version", func(t *testing.T) {
		records := txtRecords(Advertisement{ID: "player-1", Name: "Kitchen", Port: 8484})

		assert.Equal(t, []string{"id=player-1", "name=Kitchen", "api=v1"}, records)
	})

	t.Run("adds version when known", func(t *testing.T) {
		records := txtRecords(Advertisement{ID: "player-1", Name: "Kitchen", Version: "1.2.0"})

		assert.Contains(t, records, "version=1.2.0")
	})
}

func TestNewService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	service := NewService(logger)

	require.NotNil(t, service)
	assert.False(t, service.Running(), "server should be nil before Start")
}

func TestServiceStop(t *testing.T) {
	t.Run("stop when not started is safe", func(t *testing.T) {
		service := NewService(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		service.Stop()
		assert.False(t, service.Running())
	})

	t.Run("stop can be called multiple times", func(t *testing.T) {
		service := NewService(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		service.Stop()
		service.Stop()
		service.Stop()
	})
}

func TestServiceStart(t *testing.T) {
	// Multicast is often unavailable in CI containers; only assert consistency.
	service := NewService(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	err := service.Start(Advertisement{ID: "player-test", Name: "Test Player", Port: 18484})
	if err != nil {
		t.Skipf("mDNS not available: %v", err)
	}
	defer service.Stop()

	assert.True(t, service.Running())
}
