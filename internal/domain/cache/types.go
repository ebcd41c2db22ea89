// Package cache implements the response cache: a TTL'd, size-aware-LRU
// store isolated per caller (agentId).
package cache

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// idLength is the length, in characters, of the URL-safe base64 token that
// identifies an entry within its agent's namespace.
const idLength = 12

// idByteLength is how many random bytes decode to at least idLength base64
// characters; base64 produces 4 chars per 3 bytes, so 9 bytes yields 12
// chars with no padding.
const idByteLength = 9

// Entry is an immutable cached response.
// Immutable after insertion except for LastAccessedMs/AccessCount, which
// the store updates on every successful Get.
type Entry struct {
	ID             string
	AgentID        string
	Content        []byte
	CreatedAtMs    int64
	LastAccessedMs int64
	AccessCount    int64
	SizeBytes      int64
	SourceTool     string
	SourceArgs     string
}

// Handle returns the public "{agentId}:{id}" form.
func (e *Entry) Handle() string {
	return FormatHandle(e.AgentID, e.ID)
}

// FormatHandle joins an agentId and id into the public cache handle form.
func FormatHandle(agentID, id string) string {
	return agentID + ":" + id
}

// ParseHandle splits a public cache handle into its agentId and id parts.
// The id segment is everything after the first ':'; agent ids themselves
// never contain ':', so splitting on the first occurrence is sufficient.
func ParseHandle(handle string) (agentID, id string, err error) {
	idx := strings.IndexByte(handle, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("cache: malformed handle %q: missing ':'", handle)
	}
	return handle[:idx], handle[idx+1:], nil
}

// NewID generates a 12-character URL-safe base64 token with no padding.
func NewID() (string, error) {
	buf := make([]byte, idByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cache: generating id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(buf)
	if len(id) > idLength {
		id = id[:idLength]
	}
	return id, nil
}

// Sentinel lookup outcomes, surfaced to callers as proxy.Error of the
// matching Kind (CacheMiss / CacheExpired / CacheFull / TooManyAgents).
var (
	ErrMiss          = errors.New("cache: entry not found")
	ErrExpired       = errors.New("cache: entry expired")
	ErrFull          = errors.New("cache: per-agent limits exceeded, eviction could not free space")
	ErrTooManyAgents = errors.New("cache: global agent cap reached")
)

// Stats summarizes store occupancy, used for diagnostics.
type Stats struct {
	AgentCount int
	EntryCount int
	TotalBytes int64
}
