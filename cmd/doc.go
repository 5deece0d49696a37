// Package cmd provides the command-line interface for hrserve.
//
// This package implements the CLI using the Cobra framework.
//
// # Available Commands
//
//   - serve: Serve a directory with live reload (the default when no
//     subcommand is given)
//   - config show: Print the effective configuration
//   - version: Print build information
//
// # Command Examples
//
//	// Serve the current directory on the default port
//	hrserve serve
//
//	// Serve ./public on port 3000, rebuilding before each reload
//	hrserve serve ./public --port 3000 --on-change "make css"
//
//	// Show the configuration after files, env and flags are merged
//	hrserve config show --format json
//
// # Configuration
//
// Precedence, highest first:
//  1. Command-line flags (--port, --root, etc.)
//  2. Individual environment variables (HRSERVE_SERVER_PORT, etc.)
//  3. The config file: --config, else HRSERVE_CONFIG_FILE, else .hrserve.yml
//  4. Built-in defaults
//
// A running server reloads all browsers on SIGHUP.
package cmd
