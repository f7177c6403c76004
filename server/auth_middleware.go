package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-sso/brokers"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the verified broker session id
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyBroker stores the broker that derived the session id
	ContextKeyBroker ContextKey = "broker"
)

// RequireBrokerSession authenticates the bearer session id: the broker name
// is recovered from it, the broker's secret looked up and the session id
// verified. Missing or malformed credentials get a 401, unknown brokers and
// bad signatures a 403.
func (s *Server) RequireBrokerSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}
		sessionID := parts[1]

		brokerName, err := s.identity.BrokerName(sessionID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, ssoerrors.ErrInvalidSessionID.Error())
			return
		}

		broker, err := s.repos.Brokers.Get(r.Context(), brokerName)
		if errors.Is(err, ssoerrors.ErrBrokerNotFound) {
			log.Warn().Str("broker", brokerName).Msg("session id for unknown broker")
			writeError(w, http.StatusForbidden, "unknown broker")
			return
		}
		if err != nil {
			log.Err(err).Str("broker", brokerName).Msg("failed to look up broker")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := s.identity.Verify(sessionID, broker.Identity()); err != nil {
			log.Warn().Str("broker", brokerName).Msg("session id failed verification")
			writeError(w, http.StatusForbidden, ssoerrors.ErrInvalidSessionID.Error())
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySessionID, sessionID)
		ctx = context.WithValue(ctx, ContextKeyBroker, broker)
		next(w, r.WithContext(ctx))
	}
}

// brokerSession returns what RequireBrokerSession put in the context.
func brokerSession(ctx context.Context) (string, *brokers.Broker) {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	broker, _ := ctx.Value(ContextKeyBroker).(*brokers.Broker)
	return sessionID, broker
}
