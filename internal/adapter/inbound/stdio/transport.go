// Package stdio provides the stdio transport adapter for the proxy: it
// reads newline-delimited client JSON-RPC requests from an input stream
// and writes the dispatcher's responses to an output stream (MCP over
// stdio).
package stdio

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/mcpproxy/mcpproxy/internal/port/inbound"
	"github.com/mcpproxy/mcpproxy/internal/service"
)

const connID = "stdio"

// lineHandler is the subset of *service.Dispatcher the transport needs,
// kept as an interface so tests can substitute a fake.
type lineHandler interface {
	HandleLine(ctx context.Context, connID string, raw []byte) []byte
}

// StdioTransport is the inbound adapter that connects the dispatcher to
// stdin/stdout. It implements inbound.ProxyService.
type StdioTransport struct {
	dispatcher lineHandler

	mu  sync.Mutex
	in  io.Reader
	out io.Writer
}

// NewStdioTransport wraps dispatcher for a stdio-connected client.
func NewStdioTransport(dispatcher lineHandler) *StdioTransport {
	return &StdioTransport{dispatcher: dispatcher, in: os.Stdin, out: os.Stdout}
}

// Start reads one client request per line from stdin and hands each one
// to the dispatcher on its own goroutine, writing the response line to
// stdout as soon as that call completes, until stdin hits EOF or ctx is
// cancelled. One task per in-flight tool call: a slow call against one
// upstream must not delay the reply to a concurrent call against another.
// Writes to stdout are serialized by mu so two finishing calls never
// interleave their response lines.
func (t *StdioTransport) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 16*1024*1024)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanErr <- ctx.Err()
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var wg sync.WaitGroup
	writeErr := make(chan error, 1)
	reportWriteErr := func(err error) {
		select {
		case writeErr <- err:
		default:
		}
	}

	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-writeErr:
			return err
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return err
				}
				wg.Wait()
				select {
				case err := <-writeErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			wg.Add(1)
			go func(line []byte) {
				defer wg.Done()
				resp := t.dispatcher.HandleLine(ctx, connID, line)
				if resp == nil {
					return
				}
				t.mu.Lock()
				_, err := t.out.Write(resp)
				t.mu.Unlock()
				if err != nil {
					reportWriteErr(err)
				}
			}(line)
		}
	}
}

// Close is a no-op: the stdio transport owns no resources of its own. The
// session pool's Shutdown is responsible for tearing down upstream
// children.
func (t *StdioTransport) Close() error {
	return nil
}

var (
	_ inbound.ProxyService = (*StdioTransport)(nil)
	_ lineHandler          = (*service.Dispatcher)(nil)
)
