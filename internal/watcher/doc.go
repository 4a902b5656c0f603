// Package watcher corroborates stand commands against an independent event
// stream, such as the tail of a webhook worker's log.
//
// Lines have the form "<METHOD> <URL> - <STATUS>[ @ <TIMESTAMP>]". A Watcher
// holds at most one pending wait; registering a new one discards the previous.
// Lines come from a Source: a subprocess (CommandSource) or a followed file
// (FileSource).
package watcher
