package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Header names carrying the request signature.
const (
	HeaderSignature = "X-Notify-Signature"
	HeaderTimestamp = "X-Notify-Timestamp"
	HeaderID        = "X-Notify-ID"
)

// Signature binds a payload to a timestamp and request id.
type Signature struct {
	Value     string
	Timestamp int64
	ID        string
}

// Apply sets the signature headers on h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderID, s.ID)
}

// SignPayload computes HMAC-SHA256(secret, timestamp + "." + payload).
func SignPayload(secret string, payload []byte) (Signature, error) {
	if secret == "" {
		return Signature{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return Signature{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	ts := time.Now().Unix()
	return Signature{
		Value:     sign(secret, ts, payload),
		Timestamp: ts,
		ID:        uuid.New().String(),
	}, nil
}

// SignatureFromHeader reads the signature headers set by Apply.
func SignatureFromHeader(h http.Header) (Signature, error) {
	sig := Signature{
		Value: h.Get(HeaderSignature),
		ID:    h.Get(HeaderID),
	}
	raw := h.Get(HeaderTimestamp)
	if sig.Value == "" || raw == "" {
		return Signature{}, fmt.Errorf("%w: missing signature headers", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}
	sig.Timestamp = ts
	return sig, nil
}

// VerifySignature checks sig against payload. A positive maxAge also rejects
// stale signatures and ones more than a minute in the future.
func VerifySignature(secret string, payload []byte, sig Signature, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(sig.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: signature too old: %v", ErrInvalidSignature, age)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: signature timestamp is in the future", ErrInvalidSignature)
		}
	}

	expected := sign(secret, sig.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(sig.Value)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

func sign(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", ts, payload)
	return hex.EncodeToString(h.Sum(nil))
}
