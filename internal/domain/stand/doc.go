// Package stand contains the core domain types of the stand controller.
//
// It defines State (the canonical snapshot of what the stand reported),
// the Battery and Tristate value types, the logical Operation names and
// the typed errors shared by the dispatch, resolution and confirmation layers.
package stand
