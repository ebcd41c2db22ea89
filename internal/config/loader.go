// Package config provides configuration loading for the MCP aggregating
// proxy, via viper configured for JSON mcp.json documents.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the file viper searches for when CONFIG_FILE
// is not set.
const DefaultConfigFileName = "mcp.json"

// InitViper points viper at the configuration document: CONFIG_FILE's
// value if set, otherwise ./mcp.json in the current directory.
func InitViper(configFile string) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("mcp")
		viper.SetConfigType("json")
		viper.AddConfigPath(".")
	}
}

// LoadConfig reads mcp.json, applies ProxySettings defaults, and validates
// the result. When no file was named (no --config, no CONFIG_FILE) and
// ./mcp.json does not exist, that is not an error in itself — a proxy with
// zero configured upstreams is valid, though it will boot degraded (no
// upstream tools, only proxy_* tools). A file named explicitly that cannot
// be read is an error.
func LoadConfig() (*ProxyConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &Error{Message: fmt.Sprintf("reading config: %v", err)}
		}
	}

	var cfg ProxyConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, &Error{Message: fmt.Sprintf("parsing config: %v", err)}
	}

	cfg.ProxySettings.ApplyDefaults()
	if !viper.IsSet("proxySettings.enableAutoTruncation") {
		cfg.ProxySettings.EnableAutoTruncation = DefaultProxySettings().EnableAutoTruncation
	}

	if err := Validate(&cfg); err != nil {
		return nil, &Error{Message: err.Error()}
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or "" if none was found (zero-upstream / env-only boot).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
