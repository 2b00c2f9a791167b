package webhook_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

func TestSignPayload(t *testing.T) {
	t.Parallel()

	_, err := webhook.SignPayload("", []byte("{}"))
	assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)

	_, err = webhook.SignPayload("secret", nil)
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)

	sig, err := webhook.SignPayload("secret", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Len(t, sig.Value, 64)
	assert.NotEmpty(t, sig.ID)
	assert.WithinDuration(t, time.Now(), time.Unix(sig.Timestamp, 0), 2*time.Second)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()
	body := []byte(`{"userId":"u1"}`)
	sig, err := webhook.SignPayload("secret", body)
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		body    []byte
		sig     webhook.Signature
		maxAge  time.Duration
		wantErr error
	}{
		{"valid", "secret", body, sig, time.Minute, nil},
		{"wrong secret", "other", body, sig, time.Minute, webhook.ErrInvalidSignature},
		{"tampered body", "secret", []byte(`{"userId":"u2"}`), sig, time.Minute, webhook.ErrInvalidSignature},
		{"too old", "secret", body, webhook.Signature{Value: sig.Value, Timestamp: sig.Timestamp - 3600}, time.Minute, webhook.ErrInvalidSignature},
		{"future", "secret", body, webhook.Signature{Value: sig.Value, Timestamp: sig.Timestamp + 3600}, time.Minute, webhook.ErrInvalidSignature},
		{"missing secret", "", body, sig, 0, webhook.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := webhook.VerifySignature(tt.secret, tt.body, tt.sig, tt.maxAge)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignatureFromHeader(t *testing.T) {
	t.Parallel()

	sig, err := webhook.SignPayload("secret", []byte("x"))
	require.NoError(t, err)

	h := http.Header{}
	sig.Apply(h)
	got, err := webhook.SignatureFromHeader(h)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	_, err = webhook.SignatureFromHeader(http.Header{})
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)

	h.Set(webhook.HeaderTimestamp, "yesterday")
	_, err = webhook.SignatureFromHeader(h)
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
}
