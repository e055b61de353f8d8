// Package config loads and validates the connector configuration from
// environment variables (prefix BRIDGE) merged with an optional YAML
// file. It also normalizes the remote endpoint: billing platforms are
// known to mangle stored hostnames (literal DOT/DASH substitutions), and
// the loader undoes that before the endpoint is ever used.
package config
