// Package monitor polls the stand status at a fixed interval and warns when
// the battery runs low.
package monitor
