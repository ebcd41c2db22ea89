// Package inbound defines the interface a client-facing transport
// implements. The stdio adapter is the only implementation in v1; the
// seam exists so another transport can be added without touching the
// dispatcher.
package inbound

import (
	"context"
)

// ProxyService is the client-facing entry point a transport drives.
type ProxyService interface {
	// Start serves client requests until ctx is cancelled or the input
	// stream ends. Returns nil on a clean end of input.
	Start(ctx context.Context) error

	// Close releases any transport-owned resources.
	Close() error
}
