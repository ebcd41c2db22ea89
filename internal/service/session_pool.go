// Package service hosts the proxy's core logic: the session pool that owns
// every upstream child process, the dispatcher that terminates the
// client-facing MCP protocol, and the proxy tools that drill into cached
// responses.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcpproxy/mcpproxy/internal/domain/proxy"
	"github.com/mcpproxy/mcpproxy/internal/domain/upstream"
	"github.com/mcpproxy/mcpproxy/internal/port/outbound"
	"github.com/mcpproxy/mcpproxy/internal/telemetry"
	"github.com/mcpproxy/mcpproxy/pkg/mcp"
)

// defaultStartupTimeout bounds the handshake + tool-discovery round trip
// for an upstream whose spec leaves StartupTimeoutMs unset.
const defaultStartupTimeout = 10 * time.Second

// defaultCallTimeout bounds a tool call when the client request carries no
// deadline of its own.
const defaultCallTimeout = 60 * time.Second

// defaultShutdownGrace bounds how long Shutdown waits for children to exit
// after Close is requested before the pool considers them stuck.
const defaultShutdownGrace = 5 * time.Second

// ClientFactory builds the outbound transport for one upstream spec. In
// production this is adapter/outbound/mcp.NewStdioClient; tests substitute
// a fake.
type ClientFactory func(spec *upstream.Spec) outbound.MCPClient

// entry is the pool's private bookkeeping for one configured upstream: the
// domain Session plus the live transport handle needed to issue calls and
// tear the child down.
type entry struct {
	session *upstream.Session
	client  outbound.MCPClient
	rpc     *mcp.RPCClient
}

// SessionPool owns every upstream child process for the lifetime of the
// proxy. It is the sole writer of session state; every other component
// only observes sessions through the methods below.
type SessionPool struct {
	logger        *slog.Logger
	telemetry     *telemetry.Sink
	clientFactory ClientFactory

	mu      sync.RWMutex
	entries map[string]*entry
	catalog *upstream.ToolCatalog
}

// NewSessionPool constructs an empty pool. Call StartAll to spawn the
// configured upstreams.
func NewSessionPool(factory ClientFactory, logger *slog.Logger, sink *telemetry.Sink) *SessionPool {
	return &SessionPool{
		logger:        logger,
		telemetry:     sink,
		clientFactory: factory,
		entries:       make(map[string]*entry),
		catalog:       upstream.NewToolCatalog(),
	}
}

// StartAll spawns every spec in parallel and waits for each to either
// reach Ready or fail: proxy boot succeeds even if some upstreams fail
// (degraded-ready). It returns the number of upstreams that reached Ready.
func (p *SessionPool) StartAll(ctx context.Context, specs []*upstream.Spec) int {
	var wg sync.WaitGroup
	var readyCount int
	var mu sync.Mutex

	for _, spec := range specs {
		wg.Add(1)
		go func(spec *upstream.Spec) {
			defer wg.Done()
			if p.start(ctx, spec) {
				mu.Lock()
				readyCount++
				mu.Unlock()
			}
		}(spec)
	}
	wg.Wait()
	p.recordUpstreamGauges()
	return readyCount
}

// start spawns one upstream, performs the MCP handshake and tool
// discovery, and registers the resulting session (Ready or Failed). It
// returns true iff the session reached Ready.
func (p *SessionPool) start(ctx context.Context, spec *upstream.Spec) bool {
	session := upstream.NewSession(spec)

	timeout := time.Duration(spec.StartupTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := p.clientFactory(spec)
	stdin, stdout, err := client.Start(startCtx)
	if err != nil {
		session.MarkFailed(fmt.Errorf("spawn: %w", err))
		p.register(spec.Name, &entry{session: session})
		p.logger.Error("upstream failed to start", "upstream", spec.Name, "error", err)
		return false
	}

	rpc := mcp.NewRPCClient(stdin, stdout)

	tools, err := p.handshake(startCtx, spec.Name, rpc)
	if err != nil {
		session.MarkFailed(fmt.Errorf("handshake: %w", err))
		_ = client.Close()
		p.register(spec.Name, &entry{session: session})
		p.logger.Error("upstream handshake failed", "upstream", spec.Name, "error", err)
		return false
	}

	session.MarkReady(tools)
	p.catalog.SetToolsForUpstream(spec.Name, tools)
	p.register(spec.Name, &entry{session: session, client: client, rpc: rpc})
	p.logger.Info("upstream ready", "upstream", spec.Name, "tools", len(tools))

	go p.watchCrash(spec.Name, client, session)

	return true
}

// handshake performs MCP's "initialize" then "tools/list" against a
// freshly spawned child and converts the results into ToolDescriptors.
func (p *SessionPool) handshake(ctx context.Context, upstreamName string, rpc *mcp.RPCClient) ([]*upstream.ToolDescriptor, error) {
	initParams := map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "mcpproxy", "version": "1.0.0"},
	}
	if _, err := rpc.Call(ctx, "initialize", initParams); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := rpc.Notify("notifications/initialized", map[string]any{}); err != nil {
		return nil, fmt.Errorf("initialized notification: %w", err)
	}

	raw, err := rpc.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var listResult struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &listResult); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}

	descriptors := make([]*upstream.ToolDescriptor, 0, len(listResult.Tools))
	for _, t := range listResult.Tools {
		descriptors = append(descriptors, &upstream.ToolDescriptor{
			UpstreamName: upstreamName,
			NativeName:   t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
		})
	}
	return descriptors, nil
}

// watchCrash blocks on the client's Wait() and, if the child exits while
// still Ready, transitions the session to Failed: Ready moves to Failed
// if the child exits unexpectedly. The catalog keeps this upstream's tool
// descriptors as a tombstone rather than deleting them, so a subsequent
// CallTool for one of its qualified names still resolves to an owning
// session and is rejected with KindUpstreamUnavailable instead of
// KindUnknownTool.
func (p *SessionPool) watchCrash(upstreamName string, client outbound.MCPClient, session *upstream.Session) {
	err := client.Wait()
	if session.State() != upstream.StateReady {
		return
	}
	if err == nil {
		err = fmt.Errorf("upstream process exited")
	}
	session.MarkFailed(fmt.Errorf("crashed: %w", err))
	p.logger.Error("upstream crashed", "upstream", upstreamName, "error", err)
	p.recordUpstreamGauges()
}

func (p *SessionPool) register(name string, e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[name] = e
}

// ListTools returns every tool across every Ready upstream, rewritten
// with its qualified name. Tools of Failed upstreams stay in the catalog
// as tombstones for CallTool resolution but are not listed here. It does
// not include the proxy_* tools; the dispatcher appends those.
func (p *SessionPool) ListTools() []*upstream.ToolDescriptor {
	p.mu.RLock()
	ready := make(map[string]bool, len(p.entries))
	for name, e := range p.entries {
		if e.session.State() == upstream.StateReady {
			ready[name] = true
		}
	}
	p.mu.RUnlock()

	all := p.catalog.All()
	listed := all[:0]
	for _, t := range all {
		if ready[t.UpstreamName] {
			listed = append(listed, t)
		}
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].QualifiedName < listed[j].QualifiedName })
	return listed
}

// CallTool resolves a qualified name to its owning session and forwards
// args verbatim: no _meta stripping, bitwise identical arguments.
func (p *SessionPool) CallTool(ctx context.Context, qualifiedName string, args json.RawMessage) (json.RawMessage, *proxy.Error) {
	descriptor, ok := p.catalog.Lookup(qualifiedName)
	if !ok {
		return nil, proxy.New(proxy.KindUnknownTool, fmt.Sprintf("no tool registered as %q", qualifiedName))
	}

	p.mu.RLock()
	e, ok := p.entries[descriptor.UpstreamName]
	p.mu.RUnlock()
	if !ok || e.session.State() != upstream.StateReady {
		return nil, proxy.New(proxy.KindUpstreamUnavailable, fmt.Sprintf("upstream %q is not ready", descriptor.UpstreamName))
	}

	callCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	params := map[string]any{"name": descriptor.NativeName, "arguments": json.RawMessage(args)}
	result, err := e.rpc.Call(callCtx, "tools/call", params)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, proxy.Wrap(proxy.KindUpstreamTimeout, fmt.Sprintf("tool %q timed out", qualifiedName), err)
		}
		if e.session.State() == upstream.StateFailed {
			return nil, proxy.Wrap(proxy.KindUpstreamCrashed, fmt.Sprintf("upstream %q crashed mid-call", descriptor.UpstreamName), err)
		}
		return nil, proxy.Wrap(proxy.KindUpstreamError, fmt.Sprintf("tool %q returned an error", qualifiedName), err)
	}

	return result, nil
}

// Shutdown closes every session in parallel. Each client's Close is given
// up to defaultShutdownGrace to return; after that the session is marked
// Closed regardless. The stdio client's Close closes stdin and then kills
// the child at once; it does not wait for the child to exit on its own.
func (p *SessionPool) Shutdown(ctx context.Context) {
	p.mu.RLock()
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		if e.client == nil {
			continue
		}
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.session.MarkClosing()
			done := make(chan struct{})
			go func() {
				_ = e.client.Close()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(defaultShutdownGrace):
			}
			e.session.MarkClosed()
		}(e)
	}
	wg.Wait()
}

func (p *SessionPool) recordUpstreamGauges() {
	if p.telemetry == nil || p.telemetry.Metrics == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ready, failed float64
	for _, e := range p.entries {
		switch e.session.State() {
		case upstream.StateReady:
			ready++
		case upstream.StateFailed:
			failed++
		}
	}
	p.telemetry.Metrics.UpstreamsReady.Set(ready)
	p.telemetry.Metrics.UpstreamsFailed.Set(failed)
}
