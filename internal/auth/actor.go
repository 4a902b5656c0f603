package auth

import (
	"fmt"
	"os"
	"os/user"
)

// Actor identifies who issued a command.
type Actor struct {
	Hostname string
	Username string
}

// DetectActor gathers host and user information for the audit trail.
func DetectActor() (Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Actor{}, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return Actor{}, fmt.Errorf("current user: %w", err)
	}

	return Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

func (a Actor) String() string {
	return a.Username + "@" + a.Hostname
}
