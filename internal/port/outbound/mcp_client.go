// Package outbound defines the seam between the session pool and whatever
// actually spawns an upstream MCP server, so tests can stand in a fake
// child without forking a process.
package outbound

import (
	"context"
	"io"
)

// MCPClient is the transport to one upstream MCP server. The production
// implementation spawns a subprocess over stdio; other transports (or
// in-process fakes) implement the same three methods.
type MCPClient interface {
	// Start brings the upstream connection up and returns the pipe pair
	// the session pool's RPC client reads and writes.
	Start(ctx context.Context) (stdin io.WriteCloser, stdout io.ReadCloser, err error)

	// Wait blocks until the upstream process or connection terminates.
	Wait() error

	// Close tears the upstream connection down and releases its resources.
	Close() error
}
