package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"inboxsync/internal/retry"

	"github.com/google/go-github/v62/github"
)

var (
	ErrInvalidRepository = errors.New("invalid repository, expected owner/repo")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
)

// APIError is a non-2xx answer from GitHub. It unwraps to the sentinel for
// its class so callers can use errors.Is.
type APIError struct {
	StatusCode  int
	Method      string
	URL         string
	Message     string
	rateLimited bool
	retryAfter  time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}

	if e.Method == "" {
		return fmt.Sprintf("github api %d: %s", e.StatusCode, msg)
	}

	return fmt.Sprintf("github api %s %s %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

func (e *APIError) RetryAfter() (time.Duration, bool) {
	return e.retryAfter, e.retryAfter > 0
}

func (e *APIError) Unwrap() error {
	switch {
	case e.rateLimited || e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// wrapError turns go-github errors into *APIError. Transport errors are
// returned unchanged so the retry classifier sees the original message.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if rle, ok := errors.AsType[*github.RateLimitError](err); ok {
		apiErr := newAPIError(rle.Response, rle.Message)
		apiErr.rateLimited = true
		if !rle.Rate.Reset.IsZero() {
			apiErr.retryAfter = max(time.Until(rle.Rate.Reset.Time), 0)
		}
		return apiErr
	}

	if are, ok := errors.AsType[*github.AbuseRateLimitError](err); ok {
		apiErr := newAPIError(are.Response, are.Message)
		apiErr.rateLimited = true
		if are.RetryAfter != nil {
			apiErr.retryAfter = *are.RetryAfter
		}
		return apiErr
	}

	if er, ok := errors.AsType[*github.ErrorResponse](err); ok {
		apiErr := newAPIError(er.Response, er.Message)
		if er.Response != nil {
			if secs, ok := retry.RetryAfterSeconds(er.Response.Header, time.Now()); ok {
				apiErr.retryAfter = time.Duration(secs) * time.Second
			}
		}
		if strings.Contains(strings.ToLower(er.Message), "rate limit") {
			apiErr.rateLimited = true
		}
		return apiErr
	}

	return err
}

func newAPIError(resp *http.Response, message string) *APIError {
	apiErr := &APIError{Message: message}
	if resp == nil {
		return apiErr
	}

	apiErr.StatusCode = resp.StatusCode
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		apiErr.URL = resp.Request.URL.Path
	}

	return apiErr
}
