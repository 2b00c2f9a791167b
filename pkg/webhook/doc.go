// Package webhook posts JSON payloads to HTTP endpoints.
//
// Sender.Send marshals the payload, validates the URL, and POSTs it. It retries
// temporary failures (network errors, 5xx, 408/425/429) using a
// backoff.Strategy and stops on permanent 4xx responses:
//
//	sender := webhook.NewSender()
//	err := sender.Send(ctx, "https://api.example.com/push/subscriptions", body,
//		webhook.WithNoRetry(),
//		webhook.WithSignature(secret),
//	)
//
// With WithSignature the body is signed with HMAC-SHA256 bound to a unix
// timestamp; receivers check it with SignatureFromHeader and VerifySignature.
package webhook
