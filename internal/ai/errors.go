package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"

	"mediaflow/internal/services"
)

// httpStatusError is a non-2xx provider response.
type httpStatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	msg := fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// classifyStatus tags a provider status code: 408, 409, 429 and 5xx are
// transient, any other 4xx is permanent.
func classifyStatus(stage, op string, statusErr *httpStatusError) error {
	switch {
	case statusErr.StatusCode == http.StatusRequestTimeout,
		statusErr.StatusCode == http.StatusConflict,
		statusErr.StatusCode == http.StatusTooManyRequests,
		statusErr.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stage, op, "", statusErr)
	case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, stage, op, "provider rejected credentials", statusErr)
	default:
		return services.Wrap(services.ErrPermanent, stage, op, "", statusErr)
	}
}

// mapOpenAIError converts SDK errors into classified errors.
func mapOpenAIError(stage, op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		statusErr := &httpStatusError{
			Provider:   "openai",
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
		if apiErr.Response != nil {
			statusErr.RetryAfter, _ = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return classifyStatus(stage, op, statusErr)
	}
	return mapTransportError(stage, op, err)
}

// mapTransportError classifies failures that never produced a response.
func mapTransportError(stage, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, op, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stage, op, "", err)
	}
	return services.Wrap(services.ErrTransient, stage, op, "", err)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
