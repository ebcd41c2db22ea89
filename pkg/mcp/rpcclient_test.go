package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// pipePair wires an RPCClient's stdin/stdout to an in-process fake child
// that the test drives directly, without spawning a real process.
type pipePair struct {
	client       *RPCClient
	childIn      *bufio.Scanner
	childOut     io.WriteCloser
	stdinReader  *io.PipeReader
	stdoutWriter *io.PipeWriter
}

func newPipePair() *pipePair {
	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()

	scanner := bufio.NewScanner(stdinReader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	return &pipePair{
		client:       NewRPCClient(stdinWriter, stdoutReader),
		childIn:      scanner,
		childOut:     stdoutWriter,
		stdinReader:  stdinReader,
		stdoutWriter: stdoutWriter,
	}
}

func (p *pipePair) readRequest(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	if !p.childIn.Scan() {
		t.Fatalf("child failed to read request: %v", p.childIn.Err())
	}
	var req map[string]json.RawMessage
	if err := json.Unmarshal(p.childIn.Bytes(), &req); err != nil {
		t.Fatalf("child failed to decode request: %v", err)
	}
	return req
}

func (p *pipePair) writeLine(t *testing.T, line string) {
	t.Helper()
	if _, err := p.childOut.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("child failed to write response: %v", err)
	}
}

func TestRPCClient_CallReturnsMatchingResponse(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()
	defer pair.childOut.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := pair.readRequest(t)
		pair.writeLine(t, `{"jsonrpc":"2.0","id":`+string(req["id"])+`,"result":{"ok":true}}`)
	}()

	result, err := pair.client.Call(context.Background(), "tools/list", map[string]any{})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("Call() result = %s, want {\"ok\":true}", result)
	}
	<-done
}

func TestRPCClient_ConcurrentCallsAreDemultiplexedByID(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()
	defer pair.childOut.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Read both requests before replying, then answer out of order to
		// prove responses are matched by ID, not by call order.
		first := pair.readRequest(t)
		second := pair.readRequest(t)
		pair.writeLine(t, `{"jsonrpc":"2.0","id":`+string(second["id"])+`,"result":{"which":"second"}}`)
		pair.writeLine(t, `{"jsonrpc":"2.0","id":`+string(first["id"])+`,"result":{"which":"first"}}`)
	}()

	type callResult struct {
		result json.RawMessage
		err    error
	}
	results := make(chan callResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := pair.client.Call(context.Background(), "tools/call", map[string]any{})
			results <- callResult{result, err}
		}()
	}

	var got []string
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Call() error = %v, want nil", r.err)
		}
		got = append(got, string(r.result))
	}
	<-done

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
}

func TestRPCClient_CallReturnsWireError(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()
	defer pair.childOut.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := pair.readRequest(t)
		pair.writeLine(t, `{"jsonrpc":"2.0","id":`+string(req["id"])+`,"error":{"code":-32601,"message":"method not found"}}`)
	}()

	_, err := pair.client.Call(context.Background(), "bogus/method", map[string]any{})
	if err == nil {
		t.Fatal("Call() error = nil, want wire error")
	}
	wireErr, ok := err.(*WireError)
	if !ok {
		t.Fatalf("Call() error type = %T, want *WireError", err)
	}
	if wireErr.Code != -32601 {
		t.Errorf("wireErr.Code = %d, want -32601", wireErr.Code)
	}
	<-done
}

func TestRPCClient_NotificationsFromChildAreIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()
	defer pair.childOut.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The child sends a notification (no id) before the real response;
		// it must not be mistaken for a pending call's result.
		pair.writeLine(t, `{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`)
		req := pair.readRequest(t)
		pair.writeLine(t, `{"jsonrpc":"2.0","id":`+string(req["id"])+`,"result":{"ok":true}}`)
	}()

	result, err := pair.client.Call(context.Background(), "tools/list", map[string]any{})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("Call() result = %s, want {\"ok\":true}", result)
	}
	<-done
}

func TestRPCClient_CallContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()
	defer pair.childOut.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		pair.readRequest(t)
		// Never reply; the call must be unblocked by ctx cancellation, not
		// by a response.
	}()

	errCh := make(chan error, 1)
	go func() {
		_, err := pair.client.Call(ctx, "slow/call", map[string]any{})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Call() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Call to return after cancellation")
	}
	<-done
}

func TestRPCClient_NotifySendsOneWayMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()
	defer pair.childOut.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := pair.readRequest(t)
		if _, hasID := req["id"]; hasID {
			t.Error("Notify() wrote a request with an id; notifications must not carry one")
		}
	}()

	if err := pair.client.Notify("notifications/initialized", map[string]any{}); err != nil {
		t.Fatalf("Notify() error = %v, want nil", err)
	}
	<-done
}

func TestRPCClient_StdoutClosedFailsPendingCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	pair := newPipePair()

	errCh := make(chan error, 1)
	go func() {
		_, err := pair.client.Call(context.Background(), "tools/list", map[string]any{})
		errCh <- err
	}()

	pair.readRequest(t)
	pair.childOut.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Call() error = nil, want error after stdout closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Call to fail after stdout closed")
	}

	select {
	case err := <-pair.client.Done():
		if err == nil {
			t.Error("Done() = nil, want io.EOF or scan error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Done() to fire")
	}
}
