package remote

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

const defaultTLSPort = "443"

var errEmptyEndpoint = errors.New("endpoint must be provided")

// Endpoint is a parsed controller address.
type Endpoint struct {
	// Target is the gRPC dial target, host:port.
	Target string
	// Host is the host name without port.
	Host string
	// Secure reports whether the connection uses TLS.
	Secure bool
}

// ParseEndpoint accepts "host:port", "http://host:port" and "https://host[:port]".
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, errEmptyEndpoint
	}

	if !strings.Contains(raw, "://") {
		host, _, err := net.SplitHostPort(raw)
		if err != nil {
			return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, err)
		}

		return Endpoint{Target: raw, Host: host}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}

	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, errEmptyEndpoint)
	}

	var secure bool

	switch u.Scheme {
	case "https", "grpcs":
		secure = true
	case "http", "grpc":
	default:
		return Endpoint{}, fmt.Errorf("parse endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}

	port := u.Port()
	if port == "" {
		if !secure {
			return Endpoint{}, fmt.Errorf("parse endpoint %q: port is required", raw)
		}

		port = defaultTLSPort
	}

	return Endpoint{
		Target: net.JoinHostPort(u.Hostname(), port),
		Host:   u.Hostname(),
		Secure: secure,
	}, nil
}

func (e Endpoint) String() string {
	if e.Secure {
		return "https://" + e.Target
	}

	return e.Target
}
