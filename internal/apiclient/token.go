package apiclient

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/target/ward-console/internal/ports"
)

// Default token poll bounds: ten looks, 100ms apart, roughly one second in total.
const (
	DefaultTokenPollAttempts = 10
	DefaultTokenPollInterval = 100 * time.Millisecond
)

// ErrAuthTokenUnavailable is returned by AwaitToken when no token appeared within the poll bounds.
var ErrAuthTokenUnavailable = errors.New("auth token unavailable")

// TokenPoll bounds AwaitToken.
type TokenPoll struct {
	Attempts int
	Interval time.Duration
}

func (p TokenPoll) normalized() TokenPoll {
	if p.Attempts <= 0 {
		p.Attempts = DefaultTokenPollAttempts
	}
	if p.Interval <= 0 {
		p.Interval = DefaultTokenPollInterval
	}
	return p
}

// AwaitToken polls src until it yields a token, at most poll.Attempts times with
// poll.Interval between attempts. It covers the window after a page load where
// the identity provider has not yet restored the visitor's identity.
// It returns ErrAuthTokenUnavailable on exhaustion, or the context error if ctx ends first.
func AwaitToken(ctx context.Context, src ports.TokenSource, poll TokenPoll) (string, error) {
	if src == nil {
		return "", ErrAuthTokenUnavailable
	}
	poll = poll.normalized()

	backoff := retry.WithMaxRetries(uint64(poll.Attempts-1), retry.NewConstant(poll.Interval))
	var token string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tok, err := src.CurrentToken(ctx)
		if err != nil || tok == "" {
			return retry.RetryableError(ErrAuthTokenUnavailable)
		}
		token = tok
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", ErrAuthTokenUnavailable
	}
	return token, nil
}
