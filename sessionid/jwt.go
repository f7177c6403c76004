package sessionid

import (
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// JWT derives session ids as HS256 tokens signed with the broker secret. The
// issuer claim carries the broker name and the subject carries the token.
// No time based claims are set, which keeps the derivation deterministic.
type JWT struct{}

var _ Identity = JWT{}

func (JWT) SessionID(token string, broker Broker) (string, error) {
	if err := validate(token, broker); err != nil {
		return "", err
	}
	claims := jwtlib.RegisteredClaims{
		Issuer:  broker.Name,
		Subject: token,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(broker.Secret))
	if err != nil {
		return "", fmt.Errorf("[sessionid JWT] signing: %w", err)
	}
	return signed, nil
}

func (JWT) BrokerName(sessionID string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(sessionID, claims); err != nil {
		return "", fmt.Errorf("[sessionid JWT] %v: %w", err, ssoerrors.ErrInvalidSessionID)
	}
	if claims.Issuer == "" {
		return "", fmt.Errorf("[sessionid JWT] missing issuer: %w", ssoerrors.ErrInvalidSessionID)
	}
	return claims.Issuer, nil
}

func (JWT) Verify(sessionID string, broker Broker) error {
	claims := &jwtlib.RegisteredClaims{}
	_, err := jwtlib.ParseWithClaims(sessionID, claims, func(*jwtlib.Token) (interface{}, error) {
		return []byte(broker.Secret), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(broker.Name),
	)
	if err != nil {
		return fmt.Errorf("[sessionid JWT] %v: %w", err, ssoerrors.ErrInvalidSessionID)
	}
	if claims.Subject == "" {
		return fmt.Errorf("[sessionid JWT] missing subject: %w", ssoerrors.ErrInvalidSessionID)
	}
	return nil
}
