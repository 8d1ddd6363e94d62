// Package notify signs and delivers discipline events to webhook
// subscribers. Payloads are serialized in RFC 8785 canonical form
// (members in lexicographic order) before signing, so a receiver can
// recompute the HMAC over the exact bytes it was sent.
package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/strideapp/stride/internal/stride"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 signature of the
// request body.
const SignatureHeader = "X-Stride-Signature"

// Payload is the wire shape delivered to subscribers.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewPayload builds the wire payload for a discipline event. The
// timestamp is the event's occurrence time in RFC 3339 UTC.
func NewPayload(ev stride.Event) Payload {
	return Payload{
		Event:     ev.Name,
		Timestamp: ev.OccurredAt.UTC().Format(time.RFC3339),
		Data:      ev.Data,
	}
}

// CanonicalBody serializes the payload to RFC 8785 canonical JSON.
// Signatures are computed over exactly these bytes.
func CanonicalBody(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	body, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return body, nil
}

// Sign computes the hex-encoded HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret. Any
// mutation of the body bytes invalidates the signature.
func Verify(body []byte, signature, secret string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
