package apiauth

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t"

var fixedNow = time.Unix(1_700_000_000, 0)

func signedInput(ts int64, body string) SignatureInput {
	in := SignatureInput{
		Method:    "POST",
		Path:      "/relacao/violencia",
		Query:     "",
		Body:      []byte(body),
		Timestamp: strconv.FormatInt(ts, 10),
	}
	in.Signature = Sign(testSecret, SigningString(ts, in.Method, in.Path, in.Query, in.Body))
	return in
}

func newTestVerifier() *Verifier {
	return NewVerifier(testSecret, 300*time.Second, WithClock(func() time.Time { return fixedNow }))
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	require.Error(t, err)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, want, rej.Reason)
}

func TestNormalizeTimestamp(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"1700000000", 1_700_000_000, true},
		{"1700000000123", 1_700_000_000, true},
		{"999999999999", 999_999_999_999, true},
		{"1000000000000", 1_000_000_000, true},
		{" 1700000000 ", 1_700_000_000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.5", 0, false},
	}
	for _, tc := range cases {
		got, ok := NormalizeTimestamp(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestSigningStringLayout(t *testing.T) {
	got := SigningString(1_700_000_000, "post", "/relacao/violencia", "a=1", []byte(""))
	assert.Equal(t,
		"1700000000\nPOST\n/relacao/violencia\na=1\ne3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		got,
	)
}

func TestVerifyAcceptsSecondsAndMilliseconds(t *testing.T) {
	v := newTestVerifier()
	body := `{"identificadores":[{"tipo":"cpf","valor":"12345678909"}]}`

	seconds := signedInput(fixedNow.Unix(), body)
	assert.NoError(t, v.Verify(seconds))

	millis := seconds
	millis.Timestamp = strconv.FormatInt(fixedNow.UnixMilli(), 10)
	assert.NoError(t, v.Verify(millis), "signature is computed over seconds, so ms header verifies the same")
}

func TestVerifyFreshnessBoundary(t *testing.T) {
	v := newTestVerifier()

	assert.NoError(t, v.Verify(signedInput(fixedNow.Unix()-300, "{}")))
	assert.NoError(t, v.Verify(signedInput(fixedNow.Unix()+300, "{}")))
	requireReason(t, v.Verify(signedInput(fixedNow.Unix()-301, "{}")), ReasonStale)
	requireReason(t, v.Verify(signedInput(fixedNow.Unix()+301, "{}")), ReasonStale)

	// now-ts wraps to MinInt64 for this value.
	wrapped := fixedNow.Unix() + math.MinInt64
	requireReason(t, v.Verify(signedInput(wrapped, "{}")), ReasonStale)
	requireReason(t, v.Verify(signedInput(math.MinInt64, "{}")), ReasonStale)
	requireReason(t, v.Verify(signedInput(math.MaxInt64/1000, "{}")), ReasonStale)
}

func TestVerifyCheckOrder(t *testing.T) {
	v := newTestVerifier()

	in := signedInput(fixedNow.Unix(), "{}")
	in.Timestamp = "not-a-number"
	in.Signature = ""
	requireReason(t, v.Verify(in), ReasonBadTimestamp)

	in = signedInput(fixedNow.Unix()-1000, "{}")
	in.Signature = ""
	requireReason(t, v.Verify(in), ReasonStale)

	in = signedInput(fixedNow.Unix(), "{}")
	in.Signature = ""
	requireReason(t, v.Verify(in), ReasonMissingSignature)

	noSecret := NewVerifier("", 300*time.Second, WithClock(func() time.Time { return fixedNow }))
	requireReason(t, noSecret.Verify(signedInput(fixedNow.Unix(), "{}")), ReasonMissingSignature)
}

func TestVerifySignatureCoversEveryInput(t *testing.T) {
	v := newTestVerifier()
	base := signedInput(fixedNow.Unix(), `{"a":1}`)
	require.NoError(t, v.Verify(base))

	mutations := map[string]func(*SignatureInput){
		"method": func(in *SignatureInput) { in.Method = "PUT" },
		"path":   func(in *SignatureInput) { in.Path = "/relacao/outro" },
		"query":  func(in *SignatureInput) { in.Query = "x=1" },
		"body":   func(in *SignatureInput) { in.Body = []byte(`{"a":2}`) },
		"timestamp": func(in *SignatureInput) {
			in.Timestamp = strconv.FormatInt(fixedNow.Unix()-1, 10)
		},
		"signature": func(in *SignatureInput) { in.Signature = Sign("other", "x") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			requireReason(t, v.Verify(in), ReasonInvalidSignature)
		})
	}
}

func TestReasonLabels(t *testing.T) {
	assert.Equal(t, "stale", ReasonStale.Label())
	assert.Equal(t, "origin_not_allowed", ReasonOriginNotAllowed.Label())
	assert.Equal(t, "unknown", Reason("x").Label())
	assert.Equal(t, "Invalid signature", (&Rejection{Reason: ReasonInvalidSignature}).Error())
}
