package brokers

import (
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-sso/sessionid"
)

// Broker is an application registered with the SSO server.
type Broker struct {
	Name      string    `json:"name"`
	Secret    string    `json:"-"`
	Origin    string    `json:"origin,omitempty"` // scheme://host the broker may send browsers back to; empty allows any
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Identity returns the name/secret pair used to verify session ids.
func (b *Broker) Identity() sessionid.Broker {
	return sessionid.Broker{Name: b.Name, Secret: b.Secret}
}

// AllowsReturnURL reports whether the browser may be sent back to u.
func (b *Broker) AllowsReturnURL(u *url.URL) bool {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if b.Origin == "" {
		return true
	}
	origin, err := url.Parse(b.Origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(origin.Scheme, u.Scheme) && strings.EqualFold(origin.Host, u.Host)
}
