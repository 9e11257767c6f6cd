// Package signalsrv implements the completion-signal bridge: a local HTTP server that
// receives pane-scoped completion and session-end notifications from externally-launched
// processes, and synchronous wait primitives that unblock step code.
//
// # Host hook contract
//
// The engine itself never installs completion hooks into the host tool's configuration;
// that is a separate concern owned by whoever configures the host. For a pane-hosted
// process to signal this server, its host tool must be configured to POST form-encoded
// notifications to the loopback port injected into the pane's environment:
//
//	curl -s -X POST "http://127.0.0.1:$ORCHESTRATOR_PORT/complete" -d "pane=$TMUX_PANE"
//
// on step completion, and the same shape against /exited when the host session ends.
// The pane identifier is the tmux-native "%<n>" id; anything else is ignored. Without
// these hooks, shell visible-mode steps still finish via idle detection, but
// external-interactive steps have no fallback and wait indefinitely.
package signalsrv
