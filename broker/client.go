package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/rs/zerolog"
)

// APIPrefix is prepended to every command path on the server.
const APIPrefix = "/api/sso/"

const (
	DefaultCommandTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CommandClient sends authenticated commands to the SSO server.
type CommandClient struct {
	serverURL string
	doer      HTTPDoer
	timeout   time.Duration
	retry     *RetryPolicy
	metrics   *Metrics
	logger    zerolog.Logger
}

func NewCommandClient(serverURL string, doer HTTPDoer, timeout time.Duration) *CommandClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		doer:      doer,
		timeout:   timeout,
		logger:    zerolog.Nop(),
	}
}

// URL returns the absolute URL of command.
func (c *CommandClient) URL(command string) string {
	return c.serverURL + APIPrefix + strings.TrimLeft(command, "/")
}

// Invoke sends command with sessionID as bearer credential and decodes the
// JSON response into out, which may be nil. params go in the query string
// for GET and in a form encoded body otherwise.
//
// A failure to reach the server is a *errors.TransportError. A non-2xx
// status or a body that is not a JSON object is a *errors.ProtocolError.
func (c *CommandClient) Invoke(ctx context.Context, method, command string, params url.Values, sessionID string, out any) error {
	start := time.Now()
	err := c.retry.do(ctx, command, func() error {
		return c.invokeOnce(ctx, method, command, params, sessionID, out)
	})

	outcome := outcomeOK
	switch {
	case ssoerrors.IsTransport(err):
		outcome = outcomeTransport
	case err != nil:
		outcome = outcomeProtocol
	}
	c.metrics.observe(command, outcome, time.Since(start))

	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str("command", command).Str("method", method).Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("sso command")
	return err
}

func (c *CommandClient) invokeOnce(ctx context.Context, method, command string, params url.Values, sessionID string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.URL(command)
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else if params != nil {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &ssoerrors.TransportError{Command: command, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+sessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return &ssoerrors.TransportError{Command: command, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ssoerrors.TransportError{Command: command, Err: err}
	}

	var envelope map[string]any
	if err := decodeJSON(raw, &envelope); err != nil {
		return &ssoerrors.ProtocolError{Command: command, StatusCode: resp.StatusCode, Err: fmt.Errorf("response is not a JSON object: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := envelope["error"].(string)
		return &ssoerrors.ProtocolError{Command: command, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := decodeJSON(raw, out); err != nil {
		return &ssoerrors.ProtocolError{Command: command, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response shape: %w", err)}
	}
	return nil
}

func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
