// Package capability discovers and invokes controller methods whose exact
// shape differs between controller versions.
//
// A Handle describes its methods (name, parameter kinds, async flag). The
// Probe walks a declarative signature table per logical operation, checks
// each (alias, template) pair against the descriptor by arity and type
// coercion, and invokes the first match exactly once. Futures returned by
// async methods are awaited before the Probe returns. Results are classified
// into Receipts for the resolver.
package capability
