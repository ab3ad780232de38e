package qr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

const payloadVersion = "CC1"

// Payload is the decoded content of a registration QR code.
type Payload struct {
	RegistrationID string
	EventID        string
	StudentID      string
}

// Signer creates and validates signed QR payloads. The payload embeds the
// registration, event and student identifiers so a scan can be verified
// without a database round trip, and an HMAC signature makes codes
// tamper-evident.
type Signer struct {
	secret []byte
}

// NewSigner constructs a signer with the provided secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Encode returns the signed payload string for a registration.
func (s *Signer) Encode(p Payload) (string, error) {
	if p.RegistrationID == "" || p.EventID == "" || p.StudentID == "" {
		return "", fmt.Errorf("registration, event and student ids required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	sig := s.sign(p)
	return strings.Join([]string{payloadVersion, p.RegistrationID, p.EventID, p.StudentID, sig}, "."), nil
}

// Decode normalizes and validates a scanned code and returns its payload.
// Scanners may submit either the bare payload or a URL that wraps it in a
// `code` query parameter; both resolve to the same registration.
func (s *Signer) Decode(raw string) (Payload, error) {
	code := Normalize(raw)
	parts := strings.Split(code, ".")
	if len(parts) != 5 || parts[0] != payloadVersion {
		return Payload{}, fmt.Errorf("invalid qr payload format")
	}
	p := Payload{RegistrationID: parts[1], EventID: parts[2], StudentID: parts[3]}
	if p.RegistrationID == "" || p.EventID == "" || p.StudentID == "" {
		return Payload{}, fmt.Errorf("invalid qr payload format")
	}
	expected := s.sign(p)
	if !hmac.Equal([]byte(expected), []byte(parts[4])) {
		return Payload{}, fmt.Errorf("invalid qr payload signature")
	}
	return p, nil
}

// Normalize extracts the canonical payload from either a bare code or a URL
// carrying the code in its query string.
func Normalize(raw string) string {
	code := strings.TrimSpace(raw)
	if !strings.HasPrefix(code, "http://") && !strings.HasPrefix(code, "https://") {
		return code
	}
	parsed, err := url.Parse(code)
	if err != nil {
		return code
	}
	if v := parsed.Query().Get("code"); v != "" {
		return v
	}
	return code
}

func (s *Signer) sign(p Payload) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s|%s", payloadVersion, p.RegistrationID, p.EventID, p.StudentID)
	return hex.EncodeToString(mac.Sum(nil))
}
