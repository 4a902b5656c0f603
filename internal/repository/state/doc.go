// Package state implements persistence for the simulator's stand states.
//
// The FileRepository stores and loads a Snapshot as protobuf JSON on disk and
// exposes a Repository interface that the simulator service depends on.
package state
