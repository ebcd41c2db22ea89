// Package mcp implements the proxy's upstream-facing JSON-RPC client: the
// synchronous, ID-multiplexed transport used to talk to each upstream MCP
// server over its stdio pipes.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// RPCClient is a minimal synchronous-call JSON-RPC client over a pair of
// newline-delimited stdio pipes, used by the session pool to talk to
// upstream child processes. It demultiplexes concurrent calls by request
// ID so that one in-flight call to an upstream never blocks another —
// progress on one upstream must not block progress on another, which
// applies equally within a single upstream's own call queue.
type RPCClient struct {
	stdin  io.WriteCloser
	nextID int64

	mu      sync.Mutex
	pending map[string]chan rpcResult
	closed  bool

	readErr chan error
}

type rpcResult struct {
	result json.RawMessage
	rpcErr *WireError
}

// WireError mirrors the JSON-RPC 2.0 error object.
type WireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// NewRPCClient starts a reader goroutine over stdout and returns a client
// ready to issue calls against stdin. The reader goroutine exits when
// stdout hits EOF or a read error, at which point every pending call
// fails with that error. Lines that do not decode as JSON are skipped.
func NewRPCClient(stdin io.WriteCloser, stdout io.ReadCloser) *RPCClient {
	c := &RPCClient{
		stdin:   stdin,
		pending: make(map[string]chan rpcResult),
		readErr: make(chan error, 1),
	}
	go c.readLoop(stdout)
	return c
}

func (c *RPCClient) readLoop(stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		var resp wireResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue // notifications or malformed lines from the child are ignored
		}
		if len(resp.ID) == 0 || string(resp.ID) == "null" {
			continue // notification, not a response to any pending call
		}

		c.mu.Lock()
		ch, ok := c.pending[string(resp.ID)]
		if ok {
			delete(c.pending, string(resp.ID))
		}
		c.mu.Unlock()

		if ok {
			ch <- rpcResult{result: resp.Result, rpcErr: resp.Error}
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.failAllPending(err)
	c.readErr <- err
}

func (c *RPCClient) failAllPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan rpcResult)
	c.closed = true
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{rpcErr: &WireError{Code: -32000, Message: err.Error()}}
	}
}

// Call issues a request and blocks until its matching response arrives, the
// context is cancelled, or the upstream's stdout closes.
func (c *RPCClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	idJSON, _ := json.Marshal(id)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	req := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int64           `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{JSONRPC: "2.0", ID: id, Method: method, Params: paramsJSON}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ch := make(chan rpcResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("rpc client closed")
	}
	c.pending[string(idJSON)] = ch
	c.mu.Unlock()

	if _, err := c.stdin.Write(append(line, '\n')); err != nil {
		c.mu.Lock()
		delete(c.pending, string(idJSON))
		c.mu.Unlock()
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case res := <-ch:
		if res.rpcErr != nil {
			return nil, res.rpcErr
		}
		return res.result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, string(idJSON))
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Notify sends a one-way JSON-RPC notification (no ID, no reply expected).
func (c *RPCClient) Notify(method string, params any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	req := struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{JSONRPC: "2.0", Method: method, Params: paramsJSON}
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = c.stdin.Write(append(line, '\n'))
	return err
}

// Done returns a channel that is sent to once the reader goroutine exits
// (upstream stdout closed or errored).
func (c *RPCClient) Done() <-chan error {
	return c.readErr
}
