// Package sessionid derives the bearer credential a broker presents to the SSO
// server from the browser's token and the broker's identity.
//
// A derivation must be deterministic (the same token and broker always give
// the same session id) and self-describing: the server recovers the broker
// name from the session id alone, looks up the broker's secret and verifies
// the value without any further round trip.
package sessionid

import (
	"fmt"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// Broker is the identity a broker shares with the server out of band.
type Broker struct {
	Name   string
	Secret string
}

// Identity derives and verifies session ids.
type Identity interface {
	// SessionID derives the session id for token on behalf of broker.
	SessionID(token string, broker Broker) (string, error)

	// BrokerName recovers the broker name from an unverified session id.
	BrokerName(sessionID string) (string, error)

	// Verify checks that sessionID was derived with broker's secret.
	Verify(sessionID string, broker Broker) error
}

// Format names a derivation.
type Format string

const (
	FormatChecksum Format = "checksum"
	FormatJWT      Format = "jwt"
)

// New returns the derivation named by format. An empty format selects the
// checksum derivation.
func New(format Format) (Identity, error) {
	switch format {
	case "", FormatChecksum:
		return Checksum{}, nil
	case FormatJWT:
		return JWT{}, nil
	default:
		return nil, &ssoerrors.ConfigurationError{Field: "sessionIdFormat", Reason: fmt.Sprintf("unknown format %q", format)}
	}
}

func validate(token string, broker Broker) error {
	if token == "" {
		return fmt.Errorf("[sessionid] empty token: %w", ssoerrors.ErrInvalidSessionID)
	}
	if broker.Name == "" || broker.Secret == "" {
		return fmt.Errorf("[sessionid] incomplete broker identity: %w", ssoerrors.ErrInvalidBroker)
	}
	return nil
}
