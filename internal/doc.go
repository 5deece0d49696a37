// Package internal contains the implementation packages of hrserve.
//
// # Package Organization
//
//   - config: Viper-backed configuration with validation
//   - errors: The server's error taxonomy and central error logging
//   - files: Path resolution against the served root, MIME types and charsets
//   - hook: The on-change command run before browsers reload
//   - inject: Insertion of the reload script into HTML documents
//   - logging: Structured logging on log/slog
//   - middleware: Request id, access logging and panic recovery
//   - reload: Reload client registry and the WebSocket endpoint
//   - server: The HTTP front end tying the above together
//   - version: Build information
//   - watcher: Debounced file system monitoring
//
// # Data Flow
//
// A GET request is resolved by files, read, passed through inject when it is
// HTML, and written by server. The injected script opens a WebSocket which
// reload registers. When watcher reports a batch of changes, the command in
// hook runs, then server broadcasts one reload message through the registry
// and every connected page reloads itself.
package internal
