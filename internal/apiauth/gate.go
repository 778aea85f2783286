package apiauth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"healthlink/internal/apiauth/metrics"
	"healthlink/internal/platform/config"
	dErrors "healthlink/pkg/domain-errors"
	"healthlink/pkg/platform/httputil"
	"healthlink/pkg/platform/middleware/request"
	"healthlink/pkg/requestcontext"
)

// Request headers read by the gate.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
	HeaderOrigin    = "Origin"
)

// ExemptPaths bypass the gate. A path is exempt when it equals an entry or
// continues it with "/".
var ExemptPaths = []string{"/health", "/docs", "/openapi.json", "/redoc"}

// ReplayGuard remembers accepted signatures.
type ReplayGuard interface {
	Seen(ctx context.Context, signature string, ttl time.Duration) bool
}

// Gate authenticates requests with an API key and, when required, a
// timestamped HMAC signature. Settings are read from the snapshot on every
// request so a reload takes effect without restarting.
type Gate struct {
	settings *config.Snapshot
	guard    ReplayGuard
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

func WithReplayGuard(g ReplayGuard) GateOption {
	return func(gate *Gate) {
		gate.guard = g
	}
}

func WithMetrics(m *metrics.Metrics) GateOption {
	return func(gate *Gate) {
		gate.metrics = m
	}
}

func WithGateClock(now func() time.Time) GateOption {
	return func(gate *Gate) {
		if now != nil {
			gate.now = now
		}
	}
}

func NewGate(settings *config.Snapshot, logger *slog.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{settings: settings, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the gate as chi-compatible middleware.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || IsExempt(r.URL.Path) {
			g.metrics.IncrementAdmitted("exempt")
			next.ServeHTTP(w, r)
			return
		}

		settings := g.settings.Load()

		if settings.EnforceOriginCheck {
			origin := r.Header.Get(HeaderOrigin)
			if origin != "" && len(settings.AllowedOrigins) > 0 && !slices.Contains(settings.AllowedOrigins, origin) {
				g.refuse(w, r, ReasonOriginNotAllowed)
				return
			}
		}

		key := r.Header.Get(HeaderAPIKey)
		if key == "" || !keyConfigured(settings.APIKeys, key) {
			g.refuse(w, r, ReasonUnauthorized)
			return
		}
		ctx := requestcontext.WithAPIClient(r.Context(), Fingerprint(key))
		r = r.WithContext(ctx)

		if !settings.HMACRequired() {
			g.metrics.IncrementAdmitted("api_key")
			next.ServeHTTP(w, r)
			return
		}

		body, err := readAndRestore(r)
		if err != nil {
			g.logger.WarnContext(ctx, "failed to read request body for signature",
				"request_id", request.GetRequestID(ctx),
				"error", err,
			)
			g.refuse(w, r, ReasonInvalidSignature)
			return
		}

		signature := r.Header.Get(HeaderSignature)
		verifier := NewVerifier(settings.APISecret, settings.TimestampTolerance, WithClock(g.now))
		if err := verifier.Verify(SignatureInput{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Body:      body,
			Timestamp: r.Header.Get(HeaderTimestamp),
			Signature: signature,
		}); err != nil {
			reason := ReasonInvalidSignature
			var rej *Rejection
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			g.refuse(w, r, reason)
			return
		}

		if g.guard != nil && g.guard.Seen(ctx, signature, 2*settings.TimestampTolerance) {
			g.refuse(w, r, ReasonReplayed)
			return
		}

		g.metrics.IncrementAdmitted("hmac")
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) refuse(w http.ResponseWriter, r *http.Request, reason Reason) {
	ctx := r.Context()
	g.metrics.IncrementRejection(reason.Label())
	g.logger.WarnContext(ctx, "request rejected",
		"request_id", request.GetRequestID(ctx),
		"path", r.URL.Path,
		"client_ip", requestcontext.ClientIP(ctx),
		"reason", reason.Label(),
	)

	code := dErrors.CodeUnauthorized
	if reason == ReasonOriginNotAllowed {
		code = dErrors.CodeForbidden
	}
	status := dErrors.HTTPStatus(code)
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Detail: string(reason)})
}

// IsExempt reports whether path skips authentication.
func IsExempt(path string) bool {
	for _, p := range ExemptPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// keyConfigured compares against every configured key without stopping at
// the first match, so timing does not reveal which key matched.
func keyConfigured(keys []string, presented string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(k), []byte(presented))
	}
	return match == 1
}

// Fingerprint identifies an API key in logs and context without exposing it.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

// readAndRestore reads at most MaxBodyBytes+1 bytes and puts them back so the
// handler decodes the same bytes that were hashed.
func readAndRestore(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
