package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inboxsync/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int
	JitterFactor float64
}

var DefaultConfig = Config{
	InitialDelay: time.Second,
	MaxDelay:     time.Minute,
	Multiplier:   2,
	MaxRetries:   5,
	JitterFactor: 0.1,
}

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatus() int
}

// RetryAfterError is implemented by errors that carry a server-provided wait.
type RetryAfterError interface {
	error
	RetryAfter() (time.Duration, bool)
}

var retryableMessages = []string{
	"rate limit",
	"too many requests",
	"network",
	"timeout",
	"fetch",
	"connection reset",
	"connection refused",
}

// CalculateDelay returns the wait before retrying after the given 0-indexed
// attempt: min(initial * multiplier^attempt, max) plus up to
// JitterFactor of that value in random jitter.
func CalculateDelay(attempt int, cfg Config) time.Duration {
	return calculateDelay(attempt, cfg, rand.Float64)
}

func calculateDelay(attempt int, cfg Config, random func() float64) time.Duration {
	exponential := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	capped := math.Min(exponential, float64(cfg.MaxDelay))

	if cfg.JitterFactor > 0 {
		capped += capped * cfg.JitterFactor * random()
	}

	return time.Duration(capped)
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range retryableMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}

	// a connection dropped mid-response
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	if ne, ok := errors.AsType[net.Error](err); ok && ne.Timeout() {
		return true
	}

	if se, ok := errors.AsType[StatusError](err); ok {
		status := se.HTTPStatus()
		return status == http.StatusTooManyRequests ||
			(status >= http.StatusInternalServerError && status <= http.StatusGatewayTimeout)
	}

	return false
}

// RetryAfterSeconds parses a Retry-After header given either as seconds or as
// an HTTP date relative to now.
func RetryAfterSeconds(h http.Header, now time.Time) (int, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		return max(secs, 0), true
	}

	if t, err := http.ParseTime(v); err == nil {
		secs := int(math.Ceil(t.Sub(now).Seconds()))
		return max(secs, 0), true
	}

	return 0, false
}

// policy is the backoff.BackOff fed to the retry loop. A server-provided wait
// replaces the computed delay for the next attempt only.
type policy struct {
	cfg      Config
	attempt  int
	override time.Duration
	random   func() float64
}

func newPolicy(cfg Config) *policy {
	return &policy{cfg: cfg, random: rand.Float64}
}

func (p *policy) NextBackOff() time.Duration {
	d := calculateDelay(p.attempt, p.cfg, p.random)
	if p.override > 0 {
		d = min(p.override, p.cfg.MaxDelay)
		p.override = 0
	}

	p.attempt++
	return d
}

func (p *policy) Reset() {
	p.attempt = 0
	p.override = 0
}

func Do(ctx context.Context, cfg Config, op func() error) error {
	_, err := DoWithData(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})

	return err
}

// DoWithData runs op up to cfg.MaxRetries times. Errors that IsRetryable
// rejects are returned after the first attempt.
func DoWithData[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	return doWithPolicy(ctx, cfg, newPolicy(cfg), op)
}

func doWithPolicy[T any](ctx context.Context, cfg Config, p *policy, op func() (T, error)) (T, error) {
	retries := uint64(max(cfg.MaxRetries, 1) - 1)
	b := backoff.WithContext(backoff.WithMaxRetries(p, retries), ctx)

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		res, err := op()
		if err == nil {
			return res, nil
		}

		if ctx.Err() != nil || !IsRetryable(err) {
			return res, backoff.Permanent(err)
		}

		if ra, ok := errors.AsType[RetryAfterError](err); ok {
			if d, ok := ra.RetryAfter(); ok {
				p.override = d
			}
		}

		return res, err
	}

	notify := func(err error, delay time.Duration) {
		logger.Log.Warn("retrying after error",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return backoff.RetryNotifyWithData(wrapped, b, notify)
}
