package upstream

import (
	"encoding/json"
	"sync"
)

// MaxToolsPerUpstream bounds how many tools a single upstream may register,
// guarding against a malicious or buggy upstream advertising an unbounded
// catalog.
const MaxToolsPerUpstream = 1000

// ToolDescriptor is the proxy-visible view of one tool:
// {qualifiedName, upstreamName, nativeName, schema}. QualifiedName is
// always "{upstreamName}_{nativeName}"; the schema passes through from the
// upstream unmodified.
type ToolDescriptor struct {
	QualifiedName string
	UpstreamName  string
	NativeName    string
	Description   string
	InputSchema   json.RawMessage
}

// QualifiedName joins an upstream name and a native tool name the way the
// session pool does for every discovered tool.
func QualifiedName(upstreamName, nativeName string) string {
	return upstreamName + "_" + nativeName
}

// ToolCatalog holds the discovered tools for every Ready upstream, keyed by
// qualified name. Because the qualified-name scheme namespaces every tool
// by its owning upstream, two upstreams can never collide on the same
// entry the way bare tool names could; there is no conflict bookkeeping to
// maintain, unlike a cache keyed on native names alone.
type ToolCatalog struct {
	mu         sync.RWMutex
	byName     map[string]*ToolDescriptor
	byUpstream map[string][]*ToolDescriptor
}

// NewToolCatalog returns an empty catalog.
func NewToolCatalog() *ToolCatalog {
	return &ToolCatalog{
		byName:     make(map[string]*ToolDescriptor),
		byUpstream: make(map[string][]*ToolDescriptor),
	}
}

// SetToolsForUpstream replaces every tool previously registered for
// upstreamName with tools, rewriting each entry's qualified name. Called
// once per upstream after a successful handshake, and never again in v1
// since sessions are not refreshed in place.
func (c *ToolCatalog) SetToolsForUpstream(upstreamName string, tools []*ToolDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byUpstream[upstreamName]; ok {
		for _, t := range old {
			delete(c.byName, t.QualifiedName)
		}
	}

	if len(tools) > MaxToolsPerUpstream {
		tools = tools[:MaxToolsPerUpstream]
	}

	for _, t := range tools {
		t.UpstreamName = upstreamName
		t.QualifiedName = QualifiedName(upstreamName, t.NativeName)
		c.byName[t.QualifiedName] = t
	}
	c.byUpstream[upstreamName] = tools
}

// Lookup resolves a qualified name to its descriptor.
func (c *ToolCatalog) Lookup(qualifiedName string) (*ToolDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byName[qualifiedName]
	return t, ok
}

// All returns every registered tool across every upstream. The order is
// not significant; callers that need a stable snapshot for list_tools()
// should sort it.
func (c *ToolCatalog) All() []*ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*ToolDescriptor, 0, len(c.byName))
	for _, t := range c.byName {
		result = append(result, t)
	}
	return result
}

// RemoveUpstream drops every tool registered for upstreamName from the
// catalog entirely. A Failed session is tombstoned instead of going
// through this path: its tools stay listed so calls to them resolve to
// the dead session and get rejected there.
func (c *ToolCatalog) RemoveUpstream(upstreamName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tools, ok := c.byUpstream[upstreamName]; ok {
		for _, t := range tools {
			delete(c.byName, t.QualifiedName)
		}
	}
	delete(c.byUpstream, upstreamName)
}

// Count returns the total number of registered tools.
func (c *ToolCatalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}
