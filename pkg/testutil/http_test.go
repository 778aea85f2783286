package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"healthlink/pkg/requestcontext"
)

func TestAssertionsDoNotDrainBody(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"conflict","code":"IDENTIFICADORES_CONFLITANTES"}`))
	})

	req := NewJSONRequest(t, http.MethodPost, "/relacao/violencia", map[string]any{"identificadores": []any{}})
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	rr := DoRequest(h, req)
	AssertStatusAndError(t, rr, http.StatusConflict, "IDENTIFICADORES_CONFLITANTES")
	assert.Equal(t, "conflict", UnmarshalErrorResponse(t, rr)["detail"])
	AssertJSONContains(t, rr, "detail", "conflict")
}

func TestContextHelpers(t *testing.T) {
	req := NewRequest(t, http.MethodGet, "/health")
	req = WithRequestID(req, "req-9")
	req = WithAPIClient(req, "abcd1234")

	assert.Equal(t, "req-9", requestcontext.RequestID(req.Context()))
	assert.Equal(t, "abcd1234", requestcontext.APIClient(req.Context()))
}

func TestScenarioHelpers(t *testing.T) {
	var steps []string
	Given(t, "a step", func(t *testing.T) {
		steps = append(steps, "given")
		When(t, "nested", func(t *testing.T) {
			steps = append(steps, "when")
			Then(t, "runs", func(t *testing.T) {
				steps = append(steps, "then")
			})
		})
	})
	assert.Equal(t, []string{"given", "when", "then"}, steps)
}
