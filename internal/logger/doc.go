// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console or JSON encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every command derives its own context carrying the operation label, so log
// lines are tagged per call chain and never through shared mutable state.
package logger
