package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpproxy/mcpproxy/internal/domain/cache"
	"github.com/mcpproxy/mcpproxy/internal/domain/processor"
	"github.com/mcpproxy/mcpproxy/internal/domain/proxy"
	"github.com/mcpproxy/mcpproxy/internal/telemetry"
)

// proxyUpstreamName is the synthetic upstream the three proxy tools live
// under.
const proxyUpstreamName = "proxy"

// ProxyToolNames lists the qualified names the dispatcher routes to
// ProxyTools instead of the session pool.
var ProxyToolNames = []string{
	proxyUpstreamName + "_filter",
	proxyUpstreamName + "_search",
	proxyUpstreamName + "_explore",
}

// toolCaller is the subset of SessionPool the proxy tools need for fresh
// mode, kept as an interface so tests can supply a fake.
type toolCaller interface {
	CallTool(ctx context.Context, qualifiedName string, args json.RawMessage) (json.RawMessage, *proxy.Error)
}

// ProxyTools implements proxy_filter/proxy_search/proxy_explore: cached
// mode reprocesses a previously cached response; fresh mode calls the
// underlying tool first, caches the full response, then
// processes it the same way.
type ProxyTools struct {
	cache     *cache.Store
	caller    toolCaller
	telemetry *telemetry.Sink

	filterPipeline  *processor.Pipeline
	searchPipeline  *processor.Pipeline
	explorePipeline *processor.Pipeline
}

// NewProxyTools constructs the proxy tools over the given cache and
// upstream caller. The search pipeline chains every search processor;
// each one self-gates on the "mode" parameter so only one actually runs
// per call.
func NewProxyTools(store *cache.Store, caller toolCaller, sink *telemetry.Sink) *ProxyTools {
	return &ProxyTools{
		cache:     store,
		caller:    caller,
		telemetry: sink,
		filterPipeline: processor.NewPipeline(processor.NewProjectionProcessor()),
		searchPipeline: processor.NewPipeline(
			processor.NewRegexProcessor(),
			processor.NewBM25Processor(),
			processor.NewFuzzyProcessor(),
			processor.NewContextProcessor(),
		),
		explorePipeline: processor.NewPipeline(processor.NewStructureNavigator()),
	}
}

// toolArgs is the shared flat parameter shape used by all three proxy
// tools.
type toolArgs struct {
	CacheID   string         `json:"cache_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Call dispatches a proxy tool call by its qualified name (one of
// ProxyToolNames) to the matching handler.
func (t *ProxyTools) Call(ctx context.Context, agentID, qualifiedName string, rawArgs json.RawMessage) (string, string, *proxy.Error) {
	switch qualifiedName {
	case proxyUpstreamName + "_filter":
		return t.run(ctx, agentID, rawArgs, validateFilterParams, t.filterPipeline)
	case proxyUpstreamName + "_search":
		return t.run(ctx, agentID, rawArgs, validateSearchParams, t.searchPipeline)
	case proxyUpstreamName + "_explore":
		return t.run(ctx, agentID, rawArgs, validateExploreParams, t.explorePipeline)
	default:
		return "", "", proxy.New(proxy.KindUnknownTool, fmt.Sprintf("no proxy tool named %q", qualifiedName))
	}
}

// validateFilterParams checks proxy_filter's flat parameter contract.
func validateFilterParams(params processor.Params) *proxy.Error {
	if !params.Has("fields") {
		return proxy.New(proxy.KindBadArguments, "fields is required")
	}
	switch params.String("mode") {
	case "", "include", "exclude":
	default:
		return proxy.New(proxy.KindBadArguments, `mode must be "include" or "exclude"`)
	}
	return nil
}

// validateSearchParams checks proxy_search's flat parameter contract.
func validateSearchParams(params processor.Params) *proxy.Error {
	if params.String("pattern") == "" {
		return proxy.New(proxy.KindBadArguments, "pattern is required")
	}
	switch params.String("mode") {
	case "", "regex", "bm25", "fuzzy", "context":
	default:
		return proxy.New(proxy.KindBadArguments, `mode must be one of "regex", "bm25", "fuzzy", "context"`)
	}
	for _, key := range []string{"max_results", "context_lines", "top_k"} {
		if n, ok := params.Int(key); ok && n < 0 {
			return proxy.New(proxy.KindBadArguments, key+" must not be negative")
		}
	}
	if f, ok := params.Float("fuzzy_threshold"); ok && (f < 0 || f > 1) {
		return proxy.New(proxy.KindBadArguments, "fuzzy_threshold must be in [0, 1]")
	}
	return nil
}

// validateExploreParams checks proxy_explore's flat parameter contract.
func validateExploreParams(params processor.Params) *proxy.Error {
	for _, key := range []string{"max_depth", "sample_size"} {
		if n, ok := params.Int(key); ok && n < 0 {
			return proxy.New(proxy.KindBadArguments, key+" must not be negative")
		}
	}
	return nil
}

// run resolves cached-vs-fresh mode, materializes the content to process,
// runs pipeline over it with rawArgs decoded as processor params, and
// returns the rendered content plus the cache_id the caller can reuse.
func (t *ProxyTools) run(ctx context.Context, agentID string, rawArgs json.RawMessage, validate func(processor.Params) *proxy.Error, pipeline *processor.Pipeline) (string, string, *proxy.Error) {
	var args toolArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return "", "", proxy.Wrap(proxy.KindBadArguments, "could not parse proxy tool arguments", err)
	}

	hasCacheID := args.CacheID != ""
	hasTool := args.Tool != ""
	if hasCacheID == hasTool {
		return "", "", proxy.New(proxy.KindBadArguments, "exactly one of cache_id or tool must be set")
	}

	params, err := decodeParams(rawArgs)
	if err != nil {
		return "", "", proxy.Wrap(proxy.KindBadArguments, "could not parse processor parameters", err)
	}
	if verr := validate(params); verr != nil {
		return "", "", verr
	}

	var content string
	var cacheID string

	if hasCacheID {
		if owner, _, perr := cache.ParseHandle(args.CacheID); perr != nil || owner != agentID {
			t.recordCacheLookup(false)
			return "", "", mapCacheError(cache.ErrMiss)
		}
		entry, err := t.cache.Get(args.CacheID)
		if err != nil {
			t.recordCacheLookup(false)
			return "", "", mapCacheError(err)
		}
		t.recordCacheLookup(true)
		content = string(entry.Content)
		cacheID = args.CacheID
	} else {
		argBytes, err := json.Marshal(args.Arguments)
		if err != nil {
			return "", "", proxy.Wrap(proxy.KindBadArguments, "could not encode tool arguments", err)
		}
		result, cerr := t.caller.CallTool(ctx, args.Tool, argBytes)
		if cerr != nil {
			return "", "", cerr
		}
		text := extractText(result)
		handle, err := t.cache.Put(agentID, []byte(text), args.Tool, string(argBytes))
		if err != nil {
			return "", "", mapCacheError(err)
		}
		content = text
		cacheID = handle
	}

	res := pipeline.Run(content, params)
	return res.Content, cacheID, nil
}

// decodeParams flattens the raw JSON arguments into a processor.Params
// bag, so every field the client sent (fields, mode, pattern, ...) is
// visible to whichever processor looks for it.
func decodeParams(rawArgs json.RawMessage) (processor.Params, error) {
	var m map[string]any
	if err := json.Unmarshal(rawArgs, &m); err != nil {
		return nil, err
	}
	return processor.Params(m), nil
}

func (t *ProxyTools) recordCacheLookup(hit bool) {
	if t.telemetry == nil || t.telemetry.Metrics == nil {
		return
	}
	if hit {
		t.telemetry.Metrics.CacheHitsTotal.Inc()
	} else {
		t.telemetry.Metrics.CacheMissesTotal.Inc()
	}
}

func mapCacheError(err error) *proxy.Error {
	switch err {
	case cache.ErrMiss:
		return proxy.New(proxy.KindCacheMiss, "cache handle not found")
	case cache.ErrExpired:
		return proxy.New(proxy.KindCacheExpired, "cache entry expired")
	case cache.ErrFull:
		return proxy.New(proxy.KindCacheFull, "cache is full for this agent")
	case cache.ErrTooManyAgents:
		return proxy.New(proxy.KindTooManyAgents, "too many distinct agents")
	default:
		return proxy.Wrap(proxy.KindCacheMiss, "cache lookup failed", err)
	}
}

// extractText concatenates every text content block of a standard MCP
// tools/call result, falling back to the raw result bytes for tools that
// don't follow the {"content":[{"type":"text","text":...}]} convention.
func extractText(result json.RawMessage) string {
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil || len(parsed.Content) == 0 {
		return string(result)
	}
	out := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		return string(result)
	}
	return out
}
