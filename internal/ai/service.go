package ai

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

	"golang.org/x/time/rate"

	"mediaflow/internal/services"
)

const maxErrorBody = 4 << 10

// ServiceConfig configures the HTTP summarizer microservice client.
type ServiceConfig struct {
	URL               string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// ServiceOption customizes the service client.
type ServiceOption func(*ServiceSummarizer)

// WithServiceHTTPClient overrides the default HTTP client.
func WithServiceHTTPClient(client *http.Client) ServiceOption {
	return func(s *ServiceSummarizer) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// ServiceSummarizer talks to a summarization microservice that accepts
// {"text": ...} and replies with {"summary": ...}.
type ServiceSummarizer struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// NewServiceSummarizer validates the endpoint and builds a client.
func NewServiceSummarizer(cfg ServiceConfig, opts ...ServiceOption) (*ServiceSummarizer, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ai", "summarizer service", fmt.Sprintf("invalid url %q", cfg.URL), err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	s := &ServiceSummarizer{
		endpoint:   parsed.String(),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RequestsPerSecond),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Summarize posts the transcript and returns the service's summary.
func (s *ServiceSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrValidation, "summarize", "summarizer service", "transcript is empty", nil)
	}
	if err := wait(ctx, s.limiter); err != nil {
		return "", err
	}
	var out summarizeResponse
	if err := s.post(ctx, summarizeRequest{Text: text}, &out); err != nil {
		return "", err
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", services.Wrap(services.ErrTransient, "summarize", "summarizer service", "response had an empty summary", nil)
	}
	return summary, nil
}

// HealthCheck sends a short probe and expects a non-empty summary back.
func (s *ServiceSummarizer) HealthCheck(ctx context.Context) error {
	var out summarizeResponse
	if err := s.post(ctx, summarizeRequest{Text: "The quick brown fox jumps over the lazy dog."}, &out); err != nil {
		return err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return errors.New("summarizer service health: empty summary")
	}
	return nil
}

func (s *ServiceSummarizer) post(ctx context.Context, payload summarizeRequest, target *summarizeResponse) error {
	const op = "summarizer service"
	encoded, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "summarize", op, "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "summarize", op, "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return mapTransportError("summarize", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return classifyStatus("summarize", op, &httpStatusError{
			Provider:   op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter,
		})
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrTransient, "summarize", op, "decode response", err)
	}
	return nil
}
