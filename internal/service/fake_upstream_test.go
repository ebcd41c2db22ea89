package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mcpproxy/mcpproxy/internal/domain/upstream"
	"github.com/mcpproxy/mcpproxy/internal/port/outbound"
)

// fakeUpstream is an in-process stand-in for a spawned child MCP server: it
// implements outbound.MCPClient over a pair of pipes and answers
// initialize/tools/list/tools/call the way a real upstream would, so the
// session pool can be exercised without spawning a subprocess.
type fakeUpstream struct {
	mu        sync.Mutex
	tools     []string
	onCall    func(name string, args json.RawMessage) (json.RawMessage, error)
	failStart bool

	stdinR  *io.PipeReader
	stdinW  io.WriteCloser
	stdoutR io.ReadCloser
	stdoutW *io.PipeWriter

	waitCh chan error
	closed bool
}

func newFakeUpstream(tools ...string) *fakeUpstream {
	return &fakeUpstream{tools: tools, waitCh: make(chan error, 1)}
}

func (f *fakeUpstream) Start(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	if f.failStart {
		return nil, nil, fmt.Errorf("fake upstream refused to start")
	}
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	f.stdinR, f.stdinW = stdinR, stdinW
	f.stdoutR, f.stdoutW = stdoutR, stdoutW

	go f.serve()

	return stdinW, stdoutR, nil
}

func (f *fakeUpstream) serve() {
	scanner := bufio.NewScanner(f.stdinR)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if len(req.ID) == 0 {
			continue // notification, no reply
		}
		result, rpcErr := f.handle(req.Method, req.Params)
		f.reply(req.ID, result, rpcErr)
	}
}

func (f *fakeUpstream) handle(method string, params json.RawMessage) (json.RawMessage, string) {
	switch method {
	case "initialize":
		return json.RawMessage(`{"protocolVersion":"2024-11-05"}`), ""
	case "tools/list":
		type toolEntry struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		}
		entries := make([]toolEntry, 0, len(f.tools))
		for _, name := range f.tools {
			entries = append(entries, toolEntry{Name: name, Description: "fake tool " + name, InputSchema: json.RawMessage(`{}`)})
		}
		raw, _ := json.Marshal(map[string]any{"tools": entries})
		return raw, ""
	case "tools/call":
		var call struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		_ = json.Unmarshal(params, &call)
		if f.onCall != nil {
			res, err := f.onCall(call.Name, call.Arguments)
			if err != nil {
				return nil, err.Error()
			}
			return res, ""
		}
		raw, _ := json.Marshal(map[string]any{"content": []map[string]any{{"type": "text", "text": "ok"}}})
		return raw, ""
	default:
		return nil, "method not found: " + method
	}
}

func (f *fakeUpstream) reply(id json.RawMessage, result json.RawMessage, rpcErr string) {
	payload := map[string]any{"jsonrpc": "2.0", "id": json.RawMessage(id)}
	if rpcErr != "" {
		payload["error"] = map[string]any{"code": -32000, "message": rpcErr}
	} else {
		payload["result"] = result
	}
	line, _ := json.Marshal(payload)
	_, _ = f.stdoutW.Write(append(line, '\n'))
}

func (f *fakeUpstream) Wait() error {
	return <-f.waitCh
}

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	_ = f.stdinW.Close()
	_ = f.stdoutW.Close()
	select {
	case f.waitCh <- nil:
	default:
	}
	return nil
}

// crash simulates the child process exiting unexpectedly while Ready.
func (f *fakeUpstream) crash(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	_ = f.stdoutW.CloseWithError(err)
	select {
	case f.waitCh <- err:
	default:
	}
}

var _ outbound.MCPClient = (*fakeUpstream)(nil)

func singleUpstreamFactory(f *fakeUpstream) ClientFactory {
	return func(spec *upstream.Spec) outbound.MCPClient {
		return f
	}
}
