package broker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// RetryPolicy retries commands that failed to reach the server. Commands the
// server answered, even with an error, are never retried.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p *RetryPolicy) do(ctx context.Context, command string, op func() error) error {
	if p == nil || p.MaxTries <= 1 {
		return op()
	}

	expBackoff := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expBackoff.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expBackoff.MaxInterval = p.MaxInterval
	}
	expBackoff.Reset()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !ssoerrors.IsTransport(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(p.MaxTries),
	)
	if err != nil && !ssoerrors.IsTransport(err) && !ssoerrors.IsProtocol(err) {
		// Retry gave up on its own, e.g. the context ended between attempts.
		return &ssoerrors.TransportError{Command: command, Err: err}
	}
	return err
}
