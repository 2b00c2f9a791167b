package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/backoff"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

type payload struct {
	UserID string `json:"userId"`
}

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var got payload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "yes", r.Header.Get("X-Test"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		err := webhook.NewSender().Send(context.Background(), server.URL, payload{UserID: "u1"},
			webhook.WithHeader("X-Test", "yes"),
		)
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("retries temporary failures", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		var attempts []int
		err := webhook.NewSender().Send(context.Background(), server.URL, payload{UserID: "u1"},
			webhook.WithMaxRetries(3),
			webhook.WithBackoff(backoff.Fixed(time.Millisecond)),
			webhook.WithOnDelivery(func(r webhook.DeliveryResult) { attempts = append(attempts, r.Attempt) }),
		)
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []int{1, 2, 3}, attempts)
	})

	t.Run("no retry", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := webhook.NewSender().Send(context.Background(), server.URL, payload{UserID: "u1"}, webhook.WithNoRetry())
		assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("permanent failure stops retries", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad subscription", http.StatusBadRequest)
		}))
		defer server.Close()

		err := webhook.NewSender().Send(context.Background(), server.URL, payload{UserID: "u1"},
			webhook.WithBackoff(backoff.Fixed(time.Millisecond)),
		)
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.Contains(t, err.Error(), "bad subscription")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		err := webhook.NewSender().Send(context.Background(), server.URL, payload{UserID: "u1"},
			webhook.WithNoRetry(),
			webhook.WithTimeout(20*time.Millisecond),
		)
		assert.ErrorIs(t, err, webhook.ErrTimeout)
	})

	t.Run("context canceled between attempts", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		err := webhook.NewSender().Send(ctx, server.URL, payload{UserID: "u1"},
			webhook.WithBackoff(backoff.Fixed(time.Second)),
			webhook.WithOnDelivery(func(webhook.DeliveryResult) { cancel() }),
		)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestSender_Validation(t *testing.T) {
	t.Parallel()
	s := webhook.NewSender()
	ctx := context.Background()

	tests := []struct {
		name    string
		url     string
		data    any
		wantErr error
	}{
		{"empty url", "", payload{}, webhook.ErrInvalidURL},
		{"bad scheme", "ftp://example.com", payload{}, webhook.ErrInvalidURL},
		{"no host", "http://", payload{}, webhook.ErrInvalidURL},
		{"nil payload", "http://example.com", nil, webhook.ErrInvalidPayload},
		{"unmarshalable", "http://example.com", make(chan int), webhook.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Send(ctx, tt.url, tt.data), tt.wantErr)
		})
	}
}

func TestSender_Signature(t *testing.T) {
	t.Parallel()
	const secret = "s3cret"

	var verifyErr error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sig, err := webhook.SignatureFromHeader(r.Header)
		if err == nil {
			err = webhook.VerifySignature(secret, body, sig, time.Minute)
		}
		verifyErr = err
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := webhook.NewSender().Send(context.Background(), server.URL, payload{UserID: "u1"},
		webhook.WithSignature(secret),
	)
	require.NoError(t, err)
	assert.NoError(t, verifyErr)
}
