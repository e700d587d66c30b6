package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second
)

// Version is reported by the remote API and advertised over mDNS.
// Overridden at build time with -ldflags.
var Version = "dev"
