package sessionid

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

const checksumPrefix = "SSO-"

// Checksum derives session ids of the form
//
//	SSO-<broker>-<token>-<hex HMAC-SHA256(secret, "session"+token)>
//
// Tokens never contain '-', so the value is parsed from the right and broker
// names may contain dashes.
type Checksum struct{}

var _ Identity = Checksum{}

func (Checksum) SessionID(token string, broker Broker) (string, error) {
	if err := validate(token, broker); err != nil {
		return "", err
	}
	if strings.Contains(token, "-") {
		return "", fmt.Errorf("[sessionid Checksum] token contains '-': %w", ssoerrors.ErrInvalidSessionID)
	}
	return checksumPrefix + broker.Name + "-" + token + "-" + checksum(token, broker.Secret), nil
}

func (Checksum) BrokerName(sessionID string) (string, error) {
	name, _, _, err := splitChecksum(sessionID)
	return name, err
}

func (Checksum) Verify(sessionID string, broker Broker) error {
	name, token, sum, err := splitChecksum(sessionID)
	if err != nil {
		return err
	}
	if name != broker.Name {
		return fmt.Errorf("[sessionid Checksum] broker mismatch: %w", ssoerrors.ErrInvalidSessionID)
	}
	expected, _ := hex.DecodeString(checksum(token, broker.Secret))
	got, err := hex.DecodeString(sum)
	if err != nil || !hmac.Equal(expected, got) {
		return fmt.Errorf("[sessionid Checksum] checksum mismatch: %w", ssoerrors.ErrInvalidSessionID)
	}
	return nil
}

func checksum(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("session" + token))
	return hex.EncodeToString(mac.Sum(nil))
}

func splitChecksum(sessionID string) (name, token, sum string, err error) {
	rest, ok := strings.CutPrefix(sessionID, checksumPrefix)
	if !ok {
		return "", "", "", fmt.Errorf("[sessionid Checksum] missing prefix: %w", ssoerrors.ErrInvalidSessionID)
	}
	i := strings.LastIndexByte(rest, '-')
	if i <= 0 {
		return "", "", "", fmt.Errorf("[sessionid Checksum] missing checksum: %w", ssoerrors.ErrInvalidSessionID)
	}
	rest, sum = rest[:i], rest[i+1:]
	j := strings.LastIndexByte(rest, '-')
	if j <= 0 || j == len(rest)-1 || sum == "" {
		return "", "", "", fmt.Errorf("[sessionid Checksum] malformed session id: %w", ssoerrors.ErrInvalidSessionID)
	}
	return rest[:j], rest[j+1:], sum, nil
}
