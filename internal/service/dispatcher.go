package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpproxy/mcpproxy/internal/domain/proxy"
	"github.com/mcpproxy/mcpproxy/internal/telemetry"
)

// wireRequest is the generic shape of one client-facing JSON-RPC request
// line (MCP over stdio, newline-delimited).
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type wireToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Dispatcher terminates the client-facing MCP protocol: it answers
// initialize/tools/list/tools/call and routes tools/call to either the
// proxy tools or the session pool plus response interceptor.
type Dispatcher struct {
	pool        *SessionPool
	proxyTools  *ProxyTools
	interceptor *proxy.ResponseInterceptor
	identifier  AgentIdentifier
	logger      *slog.Logger
	telemetry   *telemetry.Sink
}

// NewDispatcher wires together the pool, proxy tools, and response
// interceptor behind one client-facing entry point.
func NewDispatcher(pool *SessionPool, proxyTools *ProxyTools, interceptor *proxy.ResponseInterceptor, identifier AgentIdentifier, logger *slog.Logger, sink *telemetry.Sink) *Dispatcher {
	return &Dispatcher{
		pool:        pool,
		proxyTools:  proxyTools,
		interceptor: interceptor,
		identifier:  identifier,
		logger:      logger,
		telemetry:   sink,
	}
}

// HandleLine processes one client request line and returns the response
// line to write back, or nil if the request was a notification (no id,
// no reply expected). connID identifies the client connection for agentId
// resolution.
func (d *Dispatcher) HandleLine(ctx context.Context, connID string, raw []byte) []byte {
	var req wireRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return encodeError(nil, -32700, "parse error: "+err.Error())
	}

	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	var result any
	var callErr *proxy.Error

	switch req.Method {
	case "initialize":
		result = d.handleInitialize()
	case "notifications/initialized":
		return nil
	case "tools/list":
		result = d.handleToolsList()
	case "tools/call":
		result, callErr = d.handleToolsCall(ctx, connID, req.Params)
	default:
		if isNotification {
			return nil
		}
		return encodeError(req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
	}

	if isNotification {
		return nil
	}
	if callErr != nil {
		return encodeError(req.ID, wireCodeFor(callErr.Kind), callErr.Error())
	}
	return encodeResult(req.ID, result)
}

func (d *Dispatcher) handleInitialize() any {
	return map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "mcpproxy", "version": "1.0.0"},
	}
}

func (d *Dispatcher) handleToolsList() any {
	descriptors := d.pool.ListTools()
	tools := make([]wireToolDescriptor, 0, len(descriptors)+len(ProxyToolNames))
	for _, desc := range descriptors {
		tools = append(tools, wireToolDescriptor{
			Name:        desc.QualifiedName,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		})
	}
	tools = append(tools, proxyToolDescriptors()...)
	return map[string]any{"tools": tools}
}

// proxyToolDescriptors describes the three proxy tools' flat parameter
// schemas.
func proxyToolDescriptors() []wireToolDescriptor {
	return []wireToolDescriptor{
		{
			Name:        "proxy_filter",
			Description: "Project fields from a cached or freshly-called tool response.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"cache_id": {"type": "string"},
					"tool": {"type": "string"},
					"arguments": {"type": "object"},
					"fields": {"type": "array", "items": {"type": "string"}},
					"mode": {"type": "string", "enum": ["include", "exclude"]}
				}
			}`),
		},
		{
			Name:        "proxy_search",
			Description: "Search a cached or freshly-called tool response by regex, bm25, fuzzy, or context match.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"cache_id": {"type": "string"},
					"tool": {"type": "string"},
					"arguments": {"type": "object"},
					"pattern": {"type": "string"},
					"mode": {"type": "string", "enum": ["regex", "bm25", "fuzzy", "context"]},
					"case_insensitive": {"type": "boolean"},
					"multiline": {"type": "boolean"},
					"max_results": {"type": "integer"},
					"context_lines": {"type": "integer"},
					"top_k": {"type": "integer"},
					"fuzzy_threshold": {"type": "number"}
				}
			}`),
		},
		{
			Name:        "proxy_explore",
			Description: "Summarize the structure of a cached or freshly-called tool response without streaming the payload.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"cache_id": {"type": "string"},
					"tool": {"type": "string"},
					"arguments": {"type": "object"},
					"max_depth": {"type": "integer"},
					"sample_size": {"type": "integer"}
				}
			}`),
		},
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, connID string, rawParams json.RawMessage) (any, *proxy.Error) {
	var params toolCallParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, proxy.Wrap(proxy.KindBadArguments, "could not parse tools/call params", err)
	}

	agentID := d.identifier.AgentID(connID)
	callID := uuid.New().String()
	start := time.Now()

	var span trace.Span
	if d.telemetry != nil && d.telemetry.Tracer != nil {
		ctx, span = d.telemetry.Tracer.Start(ctx, "tools/call", trace.WithAttributes(
			attribute.String("call.id", callID),
			attribute.String("tool.name", params.Name),
			attribute.String("agent.id", agentID),
		))
	}
	d.logger.Debug("dispatching tools/call", "call_id", callID, "tool", params.Name, "agent", agentID)

	var text string
	var outcome string
	var callErr *proxy.Error

	if isProxyTool(params.Name) {
		var cacheID string
		text, cacheID, callErr = d.proxyTools.Call(ctx, agentID, params.Name, params.Arguments)
		if callErr == nil && cacheID != "" {
			text = text + fmt.Sprintf("\n\n[cache_id=%q]", cacheID)
		}
	} else {
		var raw json.RawMessage
		raw, callErr = d.pool.CallTool(ctx, params.Name, params.Arguments)
		if callErr == nil {
			text = extractText(raw)
			sourceArgs, _ := json.Marshal(params.Arguments)
			text, callErr = d.intercept(agentID, text, params.Name, string(sourceArgs))
		}
	}

	if callErr != nil {
		outcome = string(callErr.Kind)
	} else {
		outcome = "ok"
	}
	d.recordCall(params.Name, outcome, time.Since(start))

	if span != nil {
		if callErr != nil {
			span.SetStatus(codes.Error, callErr.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	if callErr != nil {
		return nil, callErr
	}

	return toolCallResult{Content: []contentBlock{{Type: "text", Text: text}}}, nil
}

func (d *Dispatcher) intercept(agentID, content, sourceTool, sourceArgs string) (string, *proxy.Error) {
	out, err := d.interceptor.Intercept(agentID, content, sourceTool, sourceArgs)
	if err != nil {
		return "", mapCacheError(err)
	}
	if d.telemetry != nil && d.telemetry.Metrics != nil && out != content {
		d.telemetry.Metrics.TruncationsTotal.Inc()
	}
	return out, nil
}

func (d *Dispatcher) recordCall(tool, outcome string, elapsed time.Duration) {
	if d.telemetry == nil || d.telemetry.Metrics == nil {
		return
	}
	d.telemetry.Metrics.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	d.telemetry.Metrics.ToolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func isProxyTool(name string) bool {
	for _, n := range ProxyToolNames {
		if n == name {
			return true
		}
	}
	return false
}

// wireCodeFor maps a proxy error kind to a JSON-RPC error code.
// UnknownTool and BadArguments use the standard method-not-found (-32601)
// and invalid-params (-32602) codes; every other kind shares -32000, since
// clients discriminate on the message's Kind prefix, not the numeric code.
func wireCodeFor(kind proxy.ErrorKind) int {
	switch kind {
	case proxy.KindUnknownTool:
		return -32601
	case proxy.KindBadArguments:
		return -32602
	default:
		return -32000
	}
}

func encodeResult(id json.RawMessage, result any) []byte {
	payload := map[string]any{"jsonrpc": "2.0", "id": json.RawMessage(id), "result": result}
	line, err := json.Marshal(payload)
	if err != nil {
		return encodeError(id, -32603, "internal error: "+err.Error())
	}
	return append(line, '\n')
}

// encodeError builds a raw JSON-RPC error response by hand with a plain
// map, echoing the request's raw id bytes unchanged (null when the request
// carried none).
func encodeError(id json.RawMessage, code int, message string) []byte {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error":   map[string]any{"code": code, "message": message},
	}
	line, _ := json.Marshal(payload)
	return append(line, '\n')
}
