package webhook

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
)

// Sender posts JSON payloads to HTTP endpoints with optional retries.
// Use NewSender to create instances.
type Sender struct {
	client    *http.Client
	userAgent string
}

// NewSender creates a sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "notifykit/1.0",
	}
}

// NewSenderWithClient creates a sender around a custom client.
func NewSenderWithClient(client *http.Client) *Sender {
	s := NewSender()
	if client != nil {
		s.client = client
	}
	return s
}

// Send marshals data to JSON and POSTs it to endpoint, retrying temporary
// failures according to the configured backoff.
//
//	err := sender.Send(ctx, endpoint, body, webhook.WithNoRetry())
func (s *Sender) Send(ctx context.Context, endpoint string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}

	if err := validate(endpoint, payload); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	var lastErr error
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(options.backoff.Delay(attempt - 1)):
			}
		}

		result, err := s.attempt(ctx, client, endpoint, payload, options)
		if options.onDelivery != nil {
			result.Attempt = attempt + 1
			options.onDelivery(result)
		}
		if err == nil {
			return nil
		}

		lastErr = err
		if isPermanent(result.StatusCode) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, options.maxRetries+1, lastErr)
}

func validate(endpoint string, payload []byte) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	return nil
}

func (s *Sender) attempt(ctx context.Context, client *http.Client, endpoint string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		result.Error = err
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.signatureSecret != "" {
		sig, err := SignPayload(options.signatureSecret, payload)
		if err != nil {
			result.Error = err
			return result, err
		}
		sig.Apply(req.Header)
	}

	resp, err := client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if result.Success {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return result, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	msg := fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	if len(body) > 0 {
		text := strings.ReplaceAll(string(body), "\n", " ")
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		msg += ": " + text
	}
	result.Error = errors.New(msg)
	return result, result.Error
}

// isPermanent reports whether a status code should not be retried.
// 408, 425 and 429 are treated as temporary.
func isPermanent(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
