package webhook

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/backoff"
)

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout         time.Duration
	headers         map[string]string
	httpClient      *http.Client
	maxRetries      int
	backoff         backoff.Strategy
	signatureSecret string
	onDelivery      DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:    10 * time.Second,
		headers:    make(map[string]string),
		maxRetries: 3,
		backoff:    backoff.Default(),
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithTimeout sets the per-attempt request timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a custom request header.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt. Default is 3.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithNoRetry makes Send give up after the first attempt.
func WithNoRetry() SendOption {
	return WithMaxRetries(0)
}

// WithBackoff sets the delay strategy between retries.
func WithBackoff(s backoff.Strategy) SendOption {
	return func(o *sendOptions) {
		if s != nil {
			o.backoff = s
		}
	}
}

// WithSignature signs the body with HMAC-SHA256; see SignPayload.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient overrides the sender's client for this call.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithOnDelivery registers a callback invoked after every attempt.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
