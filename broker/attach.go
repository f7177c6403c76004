package broker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// Attach makes sure the browser has a token and that its session id is known
// to the server. A newly issued token is attached before Attach returns; if
// the server cannot be told, the token is dropped again so the next request
// starts over.
func (b *Broker) Attach(ctx context.Context, req *Request) error {
	if req.state >= StateAttached {
		return nil
	}

	token, isNew, err := b.tokens.EnsureToken(req)
	if err != nil {
		return err
	}
	if !isNew {
		req.state = StateAttached
		return nil
	}

	sid, err := b.sessionID(token)
	if err != nil {
		b.tokens.ClearToken(req)
		return err
	}
	if err := b.client.Invoke(ctx, http.MethodGet, "attach", nil, sid, nil); err != nil {
		b.tokens.ClearToken(req)
		return fmt.Errorf("[broker Attach] %w", err)
	}

	req.state = StateAttached
	b.logger.Debug().Str("broker", b.cfg.Name).Msg("attached new token")
	return nil
}

// LoginURL returns the server's browser login page for req. The session id
// travels base64 encoded in the path since a browser redirect cannot carry
// an Authorization header.
func (b *Broker) LoginURL(ctx context.Context, req *Request, returnURL string) (string, error) {
	if err := b.Attach(ctx, req); err != nil {
		return "", err
	}
	sid, err := b.SessionID(req)
	if err != nil {
		return "", err
	}

	u := b.client.URL("brokers/login/" + base64.URLEncoding.EncodeToString([]byte(sid)))
	if returnURL != "" {
		u += "?" + url.Values{"return_url": {returnURL}}.Encode()
	}
	return u, nil
}

// RedirectToSSOServer sends the browser to the server's login page with a
// 307. After logging in there the browser is sent back to returnURL.
func (b *Broker) RedirectToSSOServer(ctx context.Context, req *Request, w http.ResponseWriter, r *http.Request, returnURL string) error {
	target, err := b.LoginURL(ctx, req, returnURL)
	if err != nil {
		return err
	}
	if b.redirectBearer {
		sid, err := b.SessionID(req)
		if err != nil {
			return err
		}
		w.Header().Set("Authorization", "Bearer "+sid)
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	return nil
}

// invoke runs an authenticated command for req. If the server has lost the
// attachment (expired or restarted) a fresh token is attached and the
// command is sent once more.
func (b *Broker) invoke(ctx context.Context, req *Request, method, command string, params url.Values, out any) error {
	sid, err := b.SessionID(req)
	if err != nil {
		return err
	}
	err = b.client.Invoke(ctx, method, command, params, sid, out)
	if !notAttached(err) {
		return err
	}

	b.logger.Info().Str("broker", b.cfg.Name).Str("command", command).Msg("server lost the attachment, attaching a new token")
	b.tokens.ClearToken(req)
	if err := b.Attach(ctx, req); err != nil {
		return err
	}
	if sid, err = b.SessionID(req); err != nil {
		return err
	}
	return b.client.Invoke(ctx, method, command, params, sid, out)
}

func notAttached(err error) bool {
	var pe *ssoerrors.ProtocolError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusForbidden && pe.Message == ssoerrors.ErrNotAttached.Error()
}
