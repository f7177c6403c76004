package server

import (
	"encoding/base64"
	"net/http"
)

// RelayMiddleware turns the base64 session id in the {token} path segment
// into an Authorization header. A browser redirect cannot carry the header,
// so the URL is the only channel on this route. Standard, URL-safe and
// unpadded encodings are accepted, in that order. A standard encoding that
// contains "//" is rewritten by the mux before it gets here, which is why
// brokers send URL-safe base64.
func (s *Server) RelayMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := decodeRelayToken(r.PathValue("token"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid token")
			return
		}
		r.Header.Set("Authorization", "Bearer "+sessionID)
		next(w, r)
	}
}

var relayEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

func decodeRelayToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for _, enc := range relayEncodings {
		if b, err := enc.DecodeString(token); err == nil && len(b) > 0 {
			return string(b), true
		}
	}
	return "", false
}
