// Package client implements the autostand commands.
//
// A Session loads the settings, dials the stand controller, starts the
// confirmation watcher when the endpoint needs one, and hands commands to
// the orchestrator. Results are rendered with lipgloss.
package client
