// Command mcpproxy aggregates multiple MCP servers behind a single stdio
// endpoint.
package main

import "github.com/mcpproxy/mcpproxy/cmd/mcpproxy/cmd"

func main() {
	cmd.Execute()
}
