// Package config provides the configuration schema for the MCP aggregating
// proxy: a declarative mcp.json document describing every upstream to
// spawn plus the proxy's own cache/truncation settings.
//
// This intentionally excludes everything out of scope for this system:
//
//   - NO policy/authorization engine (the proxy forwards every call
//     verbatim; access control is an upstream or client concern).
//   - NO audit persistence, rate limiting, or HTTP gateway.
//   - NO multi-tenant identity configuration.
package config

import "fmt"

// ProxyConfig is the top-level document decoded from mcp.json.
type ProxyConfig struct {
	// McpServers maps each upstream's unique name to its spawn
	// configuration ("mcpServers").
	McpServers map[string]UpstreamConfig `mapstructure:"mcpServers"`

	// ProxySettings configures the cache and auto-truncation behavior
	// shared by every upstream.
	ProxySettings ProxySettings `mapstructure:"proxySettings"`
}

// UpstreamConfig is one entry of mcp.json's "mcpServers" map: the
// declarative description of a child process to spawn, mirroring
// upstream.Spec exactly (name comes from the map key, not a field).
type UpstreamConfig struct {
	Command          string            `mapstructure:"command" validate:"required"`
	Args             []string          `mapstructure:"args"`
	Env              map[string]string `mapstructure:"env"`
	StartupTimeoutMs int               `mapstructure:"startupTimeoutMs" validate:"omitempty,gt=0"`
}

// ProxySettings is mcp.json's "proxySettings" object. Every numeric field
// is validated to be in (0, inf) when present; a missing object uses
// DefaultProxySettings in full.
type ProxySettings struct {
	MaxResponseSize      int  `mapstructure:"maxResponseSize" validate:"gt=0"`
	CacheMaxEntries      int  `mapstructure:"cacheMaxEntries" validate:"gt=0"`
	CacheTTLSeconds      int  `mapstructure:"cacheTTLSeconds" validate:"gt=0"`
	EnableAutoTruncation bool `mapstructure:"enableAutoTruncation"`
}

// DefaultProxySettings mirrors mcp.json's documented example.
func DefaultProxySettings() ProxySettings {
	return ProxySettings{
		MaxResponseSize:      8000,
		CacheMaxEntries:      50,
		CacheTTLSeconds:      300,
		EnableAutoTruncation: true,
	}
}

// ApplyDefaults fills in the zero-valued numeric fields of ProxySettings
// with the defaults above, field by field, so a partially-specified object
// only defaults the fields the user omitted. EnableAutoTruncation is not
// touched here, since false is a valid explicit value; LoadConfig applies
// its default when the key is absent from the config.
func (p *ProxySettings) ApplyDefaults() {
	d := DefaultProxySettings()
	if p.MaxResponseSize == 0 {
		p.MaxResponseSize = d.MaxResponseSize
	}
	if p.CacheMaxEntries == 0 {
		p.CacheMaxEntries = d.CacheMaxEntries
	}
	if p.CacheTTLSeconds == 0 {
		p.CacheTTLSeconds = d.CacheTTLSeconds
	}
}

// UpstreamNames returns the configured upstream names in a stable,
// deterministic order (map iteration order is not), so callers that
// display or iterate the list get reproducible output.
func (c *ProxyConfig) UpstreamNames() []string {
	names := make([]string, 0, len(c.McpServers))
	for name := range c.McpServers {
		names = append(names, name)
	}
	// simple insertion sort: the config is small (servers are spawned
	// subprocesses, never more than a handful per proxy).
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// Error is returned by LoadConfig on a malformed document, surfaced to the
// client/operator as ConfigInvalid.
type Error struct {
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("config: %s", e.Message) }
