package apiauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Reason identifies why a request was refused by the gate. The value is the
// message returned to the client.
type Reason string

const (
	ReasonOriginNotAllowed Reason = "Origin not allowed"
	ReasonUnauthorized     Reason = "Unauthorized"
	ReasonBadTimestamp     Reason = "Missing/invalid X-Timestamp"
	ReasonStale            Reason = "Stale request"
	ReasonMissingSignature Reason = "Missing signature/secret"
	ReasonInvalidSignature Reason = "Invalid signature"
	ReasonReplayed         Reason = "Replayed request"
)

// Label is the metric label for a reason.
func (r Reason) Label() string {
	switch r {
	case ReasonOriginNotAllowed:
		return "origin_not_allowed"
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonBadTimestamp:
		return "invalid_timestamp"
	case ReasonStale:
		return "stale"
	case ReasonMissingSignature:
		return "missing_signature"
	case ReasonInvalidSignature:
		return "invalid_signature"
	case ReasonReplayed:
		return "replayed"
	default:
		return "unknown"
	}
}

// Rejection is returned by Verify when a request must be refused.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return string(r.Reason)
}

func reject(reason Reason) *Rejection {
	return &Rejection{Reason: reason}
}

// SignatureInput is the material a signed request presents.
type SignatureInput struct {
	Method    string
	Path      string
	Query     string
	Body      []byte
	Timestamp string
	Signature string
}

// millisecondThreshold separates second from millisecond epoch timestamps.
const millisecondThreshold = 1_000_000_000_000

// Verifier checks timestamp freshness and the HMAC signature of a request.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(secret string, tolerance time.Duration, opts ...VerifierOption) *Verifier {
	v := &Verifier{secret: secret, tolerance: tolerance, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns nil when the request is fresh and correctly signed, or a
// *Rejection describing the first failed check. Checks run in order:
// timestamp parse, freshness, presence of signature and secret, comparison.
func (v *Verifier) Verify(in SignatureInput) error {
	ts, ok := NormalizeTimestamp(in.Timestamp)
	if !ok {
		return reject(ReasonBadTimestamp)
	}

	if !fresh(v.now().Unix(), ts, int64(v.tolerance/time.Second)) {
		return reject(ReasonStale)
	}

	if in.Signature == "" || v.secret == "" {
		return reject(ReasonMissingSignature)
	}

	expected := Sign(v.secret, SigningString(ts, in.Method, in.Path, in.Query, in.Body))
	if !hmac.Equal([]byte(expected), []byte(in.Signature)) {
		return reject(ReasonInvalidSignature)
	}
	return nil
}

// NormalizeTimestamp parses an epoch timestamp in seconds or milliseconds and
// returns seconds. Values of at least 10^12 are milliseconds.
func NormalizeTimestamp(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	if ts >= millisecondThreshold {
		ts /= 1000
	}
	return ts, true
}

// SigningString builds the canonical string covered by the signature.
func SigningString(ts int64, method, path, query string, body []byte) string {
	sum := sha256.Sum256(body)
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('\n')
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(query)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of signingString under secret.
func Sign(secret, signingString string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingString))
	return hex.EncodeToString(mac.Sum(nil))
}

// fresh reports |now-ts| <= tolerance without computing the difference,
// which overflows for timestamps near the int64 limits.
func fresh(now, ts, tolerance int64) bool {
	if ts <= now {
		return now-tolerance <= ts
	}
	return ts-tolerance <= now
}
