package capability

import (
	"math"
	"time"

	"github.com/oshokin/autostand/internal/domain/stand"
)

// slot is one position of an argument template.
type slot struct {
	// ref names a value taken from Args; empty means literal.
	ref     string
	literal any
}

const (
	refID      = "id"
	refTimeout = "timeout"
	refCode    = "code"
)

var (
	idSlot      = slot{ref: refID}      //nolint:gochecknoglobals // Template placeholder.
	timeoutSlot = slot{ref: refTimeout} //nolint:gochecknoglobals // Template placeholder.
	codeSlot    = slot{ref: refCode}    //nolint:gochecknoglobals // Template placeholder.
)

func literal(v any) slot {
	return slot{literal: v}
}

// Template is an ordered argument list with placeholders.
type Template []slot

// Signature pairs a method alias with one argument template.
type Signature struct {
	Alias    string
	Template Template
}

// Args supplies the values that fill template placeholders.
type Args struct {
	StandID int
	Timeout time.Duration
	// Code is the transaction code for the transaction accessors.
	Code string
}

// Build fills the template. Ids and timeouts are passed as int32 so they
// widen into any numeric parameter; timeouts are whole seconds rounded up.
func (t Template) Build(a Args) []any {
	out := make([]any, len(t))

	for i, s := range t {
		switch s.ref {
		case refID:
			out[i] = int32(a.StandID) //nolint:gosec // Stand ids are small positive integers.
		case refTimeout:
			out[i] = int32(math.Ceil(a.Timeout.Seconds()))
		case refCode:
			out[i] = a.Code
		default:
			out[i] = s.literal
		}
	}

	return out
}

// aliases expands aliases into signatures, each with every template in order.
func aliases(names []string, templates ...Template) []Signature {
	out := make([]Signature, 0, len(names)*len(templates))

	for _, name := range names {
		for _, t := range templates {
			out = append(out, Signature{Alias: name, Template: t})
		}
	}

	return out
}

func concat(groups ...[]Signature) []Signature {
	var out []Signature
	for _, g := range groups {
		out = append(out, g...)
	}

	return out
}

// DefaultSignatures is the alias priority per operation, newest convention first.
// Within an alias templates run from most to least specific.
func DefaultSignatures() map[stand.Operation][]Signature {
	idTimeout := Template{idSlot, timeoutSlot}
	idOnly := Template{idSlot}

	return map[stand.Operation][]Signature{
		stand.OpRaise: concat(
			aliases([]string{"Up", "UpAsync"}, idTimeout, idOnly),
			aliases([]string{"Open", "OpenAsync"},
				Template{idSlot, literal(true), timeoutSlot},
				Template{idSlot, literal(true)}),
		),
		stand.OpLower: concat(
			aliases([]string{"Down", "DownAsync"}, idTimeout, idOnly),
			aliases([]string{"Close", "CloseAsync"},
				Template{idSlot, literal(true), timeoutSlot},
				Template{idSlot, literal(true)}),
		),
		stand.OpStatus: aliases(
			[]string{"CheckStatus", "CheckStatusAsync", "GetStatus", "GetStatusAsync", "RequestStatusAsync"},
			idTimeout, idOnly,
		),
		stand.OpBattery: aliases(
			[]string{"CheckBattery", "CheckBatteryAsync", "GetBattery", "GetBatteryAsync"},
			idTimeout, idOnly,
		),
		stand.OpRaiseNoWait: concat(
			aliases([]string{"Open", "OpenAsync"},
				Template{idSlot, literal(false), timeoutSlot},
				Template{idSlot, literal(false)}),
			aliases([]string{"RequestOperation"}, Template{idSlot, literal("Up")}),
		),
		stand.OpLowerNoWait: concat(
			aliases([]string{"Close", "CloseAsync"},
				Template{idSlot, literal(false), timeoutSlot},
				Template{idSlot, literal(false)}),
			aliases([]string{"RequestOperation"}, Template{idSlot, literal("Down")}),
		),
		stand.OpWaitTransaction: aliases(
			[]string{"WaitForTransaction", "WaitForTransactionAsync"},
			Template{codeSlot, timeoutSlot}, Template{codeSlot},
		),
		stand.OpGetTransaction: aliases(
			[]string{"GetTransaction", "GetTransactionAsync"},
			Template{codeSlot},
		),
	}
}
