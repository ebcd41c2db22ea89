package proxy

import (
	"fmt"
	"unicode/utf8"

	"github.com/mcpproxy/mcpproxy/internal/domain/cache"
)

// truncationTrailerTemplate is the exact literal form clients pattern-match
// against. handle is substituted for %s.
const truncationTrailerTemplate = "\n\n[Response truncated. Full content cached. Use cache_id=\"%s\" with proxy_filter, proxy_search, or proxy_explore to access.]"

// InterceptorConfig carries the two knobs proxySettings exposes: whether
// auto-truncation is enabled and the character threshold that triggers
// it.
type InterceptorConfig struct {
	AutoTruncate    bool
	MaxResponseSize int
}

// ResponseInterceptor runs after every non-proxy tool call returns:
// oversized responses are cached in full and replaced with a truncated
// reply plus a trailer pointing at the cache handle; everything else
// passes through unchanged.
type ResponseInterceptor struct {
	cfg   InterceptorConfig
	cache *cache.Store
}

// NewResponseInterceptor constructs a ResponseInterceptor over the given
// cache store.
func NewResponseInterceptor(cfg InterceptorConfig, store *cache.Store) *ResponseInterceptor {
	return &ResponseInterceptor{cfg: cfg, cache: store}
}

// Intercept applies the truncation policy to one tool response. agentID
// scopes the cache insertion; sourceTool/sourceArgs are recorded on the
// cache entry for diagnostics. Returns the (possibly truncated) reply text.
func (r *ResponseInterceptor) Intercept(agentID, content, sourceTool, sourceArgs string) (string, error) {
	if !r.cfg.AutoTruncate || utf8.RuneCountInString(content) <= r.cfg.MaxResponseSize {
		return content, nil
	}

	handle, err := r.cache.Put(agentID, []byte(content), sourceTool, sourceArgs)
	if err != nil {
		return "", err
	}

	prefix := safeUTF8Slice(content, r.cfg.MaxResponseSize)
	return prefix + fmt.Sprintf(truncationTrailerTemplate, handle), nil
}

// safeUTF8Slice returns the first n characters (runes) of s, cutting only
// at a rune boundary so it never splits a codepoint.
func safeUTF8Slice(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
