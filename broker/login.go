package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// RemoteUser is the identity payload the server returns: "id" plus the
// server's configured field set. Numbers are json.Number.
type RemoteUser map[string]any

func (u RemoteUser) ID() string {
	return u.String("id")
}

// String returns field as a string, or "" when absent or not scalar.
func (u RemoteUser) String(field string) string {
	switch v := u[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return fmt.Sprint(v)
	}
	return ""
}

type commandResponse struct {
	Data    RemoteUser `json:"data"`
	Error   string     `json:"error,omitempty"`
	Success string     `json:"success,omitempty"`
}

// Login checks the credentials with the server. On success the matching
// local user is found or created and, if the browser has no local session
// yet, logged in. Refused credentials (or the login rate limit) return false
// without an error. Any other refusal, such as an unverifiable session id,
// is returned as a *errors.ProtocolError.
func (b *Broker) Login(ctx context.Context, req *Request, username, password string) (bool, error) {
	if err := b.Attach(ctx, req); err != nil {
		return false, err
	}

	var resp commandResponse
	err := b.invoke(ctx, req, http.MethodPost, "login", url.Values{
		"username": {username},
		"password": {password},
	}, &resp)
	if err != nil {
		var pe *ssoerrors.ProtocolError
		if errors.As(err, &pe) && pe.Rejected() {
			b.logger.Info().Str("broker", b.cfg.Name).Str("username", username).Str("reason", pe.Message).Msg("sso login rejected")
			return false, nil
		}
		return false, ssoerrors.Wrapf(err, "[broker Login]")
	}
	if resp.Error != "" || resp.Data.ID() == "" {
		b.logger.Info().Str("broker", b.cfg.Name).Str("username", username).Str("reason", resp.Error).Msg("sso login rejected")
		return false, nil
	}

	value := resp.Data.String(b.cfg.RemoteField)
	if value == "" {
		return false, &ssoerrors.ProtocolError{
			Command:    "login",
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("identity has no %q field", b.cfg.RemoteField),
		}
	}

	local, err := b.localUser(ctx, value)
	if err != nil {
		return false, ssoerrors.Wrapf(err, "[broker Login]")
	}
	if req.Auth != nil && req.Auth.Guest(ctx) {
		if err := req.Auth.LoginUser(ctx, local.ID); err != nil {
			return false, fmt.Errorf("[broker Login] local login failed: %w", err)
		}
	}

	req.state = StateAuthenticated
	b.logger.Info().Str("broker", b.cfg.Name).Str("username", username).Str("localUserId", local.ID).Msg("sso login")
	return true, nil
}

func (b *Broker) localUser(ctx context.Context, value string) (*LocalUser, error) {
	u, err := b.users.FindBy(ctx, value)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return b.users.Create(ctx, value)
}

// UserInfo returns the identity logged in through req's session id, or nil
// when the session is anonymous.
func (b *Broker) UserInfo(ctx context.Context, req *Request) (RemoteUser, error) {
	if err := b.Attach(ctx, req); err != nil {
		return nil, err
	}

	var resp commandResponse
	if err := b.invoke(ctx, req, http.MethodGet, "userInfo", nil, &resp); err != nil {
		return nil, ssoerrors.Wrapf(err, "[broker UserInfo]")
	}
	if resp.Data == nil || resp.Data.ID() == "" {
		req.state = StateAttached
		return nil, nil
	}
	req.state = StateAuthenticated
	return resp.Data, nil
}

// Logout ends the login on the server for every broker sharing it, then the
// local session.
func (b *Broker) Logout(ctx context.Context, req *Request) error {
	if err := b.Attach(ctx, req); err != nil {
		return err
	}
	if err := b.invoke(ctx, req, http.MethodPost, "logout", nil, nil); err != nil {
		return ssoerrors.Wrapf(err, "[broker Logout]")
	}
	req.state = StateAttached
	if req.Auth != nil {
		if err := req.Auth.Logout(ctx); err != nil {
			return fmt.Errorf("[broker Logout] local logout failed: %w", err)
		}
	}
	return nil
}
