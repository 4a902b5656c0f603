package orchestrator

import (
	"path"
	"strings"

	"github.com/oshokin/autostand/internal/config"
)

// Policy decides how an actuation is dispatched.
type Policy int

const (
	// PolicyDirect calls the controller and trusts its result.
	PolicyDirect Policy = iota
	// PolicyConfirmed sends a no-wait command and corroborates it with the event stream.
	PolicyConfirmed
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p == PolicyConfirmed {
		return "confirmed"
	}

	return "direct"
}

// ChoosePolicy picks the policy for host. An explicit mode wins; in auto mode
// the host must match one of patterns.
func ChoosePolicy(mode config.ConfirmMode, host string, patterns []string) Policy {
	switch mode {
	case config.ConfirmAlways:
		return PolicyConfirmed
	case config.ConfirmNever:
		return PolicyDirect
	default:
	}

	host = strings.ToLower(host)

	for _, pattern := range patterns {
		if ok, err := path.Match(strings.ToLower(pattern), host); err == nil && ok {
			return PolicyConfirmed
		}
	}

	return PolicyDirect
}
