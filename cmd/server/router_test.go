package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthlink/internal/apiauth"
	"healthlink/internal/health"
	"healthlink/internal/platform/config"
	relationhandler "healthlink/internal/relation/handler"
	relationservice "healthlink/internal/relation/service"
	relationstore "healthlink/internal/relation/store"
	"healthlink/pkg/platform/middleware/request"
	"healthlink/pkg/testutil"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := relationservice.New(relationstore.NewInMemory(), relationservice.WithLogger(log))
	require.NoError(t, err)

	settings := config.NewSnapshot(config.Auth{
		Environment:        config.EnvDevelopment,
		APIKeys:            []string{"key-1"},
		TimestampTolerance: 300 * time.Second,
	})
	return newRouter(routes{
		relation: relationhandler.New(svc, log),
		health:   health.New(okPinger{}, log),
		gate:     apiauth.NewGate(settings, log),
		logger:   log,
	})
}

func TestHealthIsExemptFromAuth(t *testing.T) {
	r := testRouter(t)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/health/db"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "database", "up")
}

func TestRelationRequiresAPIKey(t *testing.T) {
	body := `{"identificadores":[{"tipo":"cpf","valor":"12345678901"}]}`

	testutil.Given(t, "the public router in development mode", func(t *testing.T) {
		r := testRouter(t)

		testutil.When(t, "no API key is sent", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewRequestWithBody(t, http.MethodPost, "/relacao/violencia", body))

			testutil.Then(t, "the gate answers 401 with a request id", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
				assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
			})
		})

		testutil.When(t, "a configured API key and a correlation id are sent", func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/relacao/violencia", body)
			req.Header.Set(apiauth.HeaderAPIKey, "key-1")
			req.Header.Set(request.HeaderRequestID, "corr-1")
			rr := testutil.DoRequest(r, req)

			testutil.Then(t, "the request resolves and echoes the correlation id", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Equal(t, "corr-1", rr.Header().Get(request.HeaderRequestID))
				testutil.AssertJSONContains(t, rr, "relacionado", false)
			})
		})
	})
}
