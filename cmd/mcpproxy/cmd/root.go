// Package cmd provides the CLI commands for the MCP aggregating proxy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpproxy/mcpproxy/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpproxy",
	Short: "mcpproxy - MCP aggregating proxy",
	Long: `mcpproxy aggregates several MCP servers behind a single stdio endpoint.

It spawns every server listed in mcp.json, merges their tools into one
qualified catalog ("{upstream}_{tool}"), and forwards tools/call verbatim.
Large responses are auto-truncated and cached; three built-in proxy tools
(proxy_filter, proxy_search, proxy_explore) let a client drill back into a
cached response without re-fetching it.

Quick start:
  1. Create a config file: mcp.json
  2. Run: mcpproxy start

Configuration:
  Config is loaded from mcp.json in the current directory, or from the
  file named by --config / CONFIG_FILE.

Commands:
  start       Start the proxy
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcp.json)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
