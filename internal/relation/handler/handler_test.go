package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthlink/internal/apiauth"
	"healthlink/internal/platform/config"
	"healthlink/internal/relation/handler/mocks"
	"healthlink/internal/relation/models"
	"healthlink/internal/relation/service"
	"healthlink/internal/relation/store"
	"healthlink/internal/usage"
	usagestore "healthlink/internal/usage/store"
	"healthlink/pkg/platform/middleware/metadata"
	"healthlink/pkg/platform/middleware/request"
	"healthlink/pkg/platform/middleware/requesttime"
	"healthlink/pkg/testutil"
)

const (
	testKey    = "key-1"
	testSecret = "s3cr3t"
	testPath   = "/relacao/violencia"
)

var fixedNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(s string) *string { return &s }

// RelationSuite drives the endpoint through the same middleware chain the
// server mounts, backed by the in-memory relation store.
type RelationSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	usage    *usagestore.InMemoryStore
	recorder *usage.Recorder
	settings *config.Snapshot
	router   http.Handler
}

func TestRelationSuite(t *testing.T) {
	suite.Run(t, new(RelationSuite))
}

func (s *RelationSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.usage = usagestore.NewInMemory()
	s.recorder = usage.NewRecorder(s.usage, usage.WithLocation(time.UTC), usage.WithLogger(discardLogger()))

	svc, err := service.New(s.store,
		service.WithUsageRecorder(s.recorder),
		service.WithLogger(discardLogger()),
	)
	s.Require().NoError(err)

	yes := true
	s.settings = config.NewSnapshot(config.Auth{
		Environment:        config.EnvProduction,
		APIKeys:            []string{testKey},
		APISecret:          testSecret,
		RequireHMAC:        &yes,
		TimestampTolerance: 300 * time.Second,
	})
	s.router = newRouter(New(svc, discardLogger()), s.settings)
}

func newRouter(h *Handler, settings *config.Snapshot) http.Handler {
	clock := func() time.Time { return fixedNow }
	gate := apiauth.NewGate(settings, discardLogger(), apiauth.WithGateClock(clock))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.MiddlewareWithClock(clock))
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recover(discardLogger()))
	r.Use(gate.Middleware)
	h.Register(r)
	return r
}

func (s *RelationSuite) signed(path, body string) *http.Request {
	ts := fixedNow.Unix()
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiauth.HeaderAPIKey, testKey)
	req.Header.Set(apiauth.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(apiauth.HeaderSignature, apiauth.Sign(testSecret, apiauth.SigningString(ts, http.MethodPost, path, "", []byte(body))))
	return req
}

func identifiersBody(pairs ...[2]string) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf(`{"tipo":%q,"valor":%q}`, p[0], p[1])
	}
	return `{"identificadores":[` + strings.Join(parts, ",") + `]}`
}

func (s *RelationSuite) TestMissingAPIKeyIsUnauthorized() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, testPath, identifiersBody([2]string{"cpf", "12345678901"}))
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("Unauthorized", testutil.UnmarshalErrorResponse(s.T(), rr)["detail"])
}

func (s *RelationSuite) TestStaleTimestampIsUnauthorized() {
	body := identifiersBody([2]string{"cpf", "12345678901"})
	req := s.signed(testPath, body)
	old := fixedNow.Unix() - 600
	req.Header.Set(apiauth.HeaderTimestamp, strconv.FormatInt(old, 10))
	req.Header.Set(apiauth.HeaderSignature, apiauth.Sign(testSecret, apiauth.SigningString(old, http.MethodPost, testPath, "", []byte(body))))

	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("Stale request", testutil.UnmarshalErrorResponse(s.T(), rr)["detail"])
}

func (s *RelationSuite) TestMatchedExplicitEvent() {
	s.store.AddIdentifier(7, "cpf", "12345678901")
	s.store.AddEvent(models.Event{
		IndividualID:   7,
		Type:           models.EventTypeViolence,
		Date:           time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC),
		Method:         models.MethodExplicitSemantic,
		SourceBank:     ptr(string(models.SourceBankSinanViolence)),
		SourceRecordID: ptr("SIN-42"),
	})

	rr := testutil.DoRequest(s.router, s.signed(testPath, identifiersBody([2]string{"cpf", "123.456.789-01"})))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	resp := testutil.UnmarshalResponse[RelationResponse](s.T(), rr)
	s.True(resp.Related)
	s.Require().NotNil(resp.Method)
	s.Equal("explicit-semantic-model", *resp.Method)
	s.Equal("2024-11-02", *resp.Date)
	s.Equal("Sinan - Violências", *resp.SourceBank)
	s.Equal("SIN-42", *resp.SourceRecordID)

	s.recorder.Close()
	counts, err := s.usage.Get(context.Background(), usage.Key{
		Endpoint:  testPath,
		EventType: "violencia",
		Method:    "explicit-semantic-model",
		Day:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.Equal(usage.Counts{Calls: 1, Positives: 1}, counts)
}

func (s *RelationSuite) TestNoMatchReturnsNulls() {
	rr := testutil.DoRequest(s.router, s.signed(testPath, identifiersBody([2]string{"cns", "700000000000000"})))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{
		"relacionado": false,
		"metodo_identificacao": null,
		"data_identificacao": null,
		"banco_origem_identificacao": null,
		"id_registro_identificacao": null
	}`, rr.Body.String())

	s.recorder.Close()
	counts, err := s.usage.Get(context.Background(), usage.Key{
		Endpoint:  testPath,
		EventType: "violencia",
		Method:    usage.MethodAbsent,
		Day:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.Equal(usage.Counts{Calls: 1, Positives: 0}, counts)
}

func (s *RelationSuite) TestIdentifiersOfDifferentIndividualsConflict() {
	s.store.AddIdentifier(1, "cpf", "11111111111")
	s.store.AddIdentifier(2, "cns", "222222222222222")

	body := identifiersBody([2]string{"cpf", "111.111.111-11"}, [2]string{"cns", "222 2222 2222 2222"})
	rr := testutil.DoRequest(s.router, s.signed(testPath, body))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, models.ConflictCode)
	s.Equal(models.ConflictMessage, testutil.UnmarshalErrorResponse(s.T(), rr)["detail"])
	s.NotContains(rr.Body.String(), "11111111111")
}

func (s *RelationSuite) TestTooManyIdentifiers() {
	pairs := make([][2]string, 11)
	for i := range pairs {
		pairs[i] = [2]string{"cpf", fmt.Sprintf("%011d", i+1)}
	}
	rr := testutil.DoRequest(s.router, s.signed(testPath, identifiersBody(pairs...)))
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
}

func (s *RelationSuite) TestEmptyIdentifierList() {
	rr := testutil.DoRequest(s.router, s.signed(testPath, `{"identificadores":[]}`))
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
}

func (s *RelationSuite) TestBodyKeysOutsideSchemaAreIgnored() {
	s.store.AddIdentifier(7, "cpf", "12345678901")
	s.store.AddEvent(models.Event{
		IndividualID: 7,
		Type:         models.EventTypeViolence,
		Date:         time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC),
		Method:       models.MethodCaseNotification,
	})

	body := `{"tipo_evento":"violencia","identificadores":[{"tipo":"cpf","valor":"123.456.789-01","origem":"x"}]}`
	rr := testutil.DoRequest(s.router, s.signed(testPath, body))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	testutil.AssertJSONContains(s.T(), rr, "relacionado", true)
}

func (s *RelationSuite) TestMalformedBodyIsValidationError() {
	rr := testutil.DoRequest(s.router, s.signed(testPath, `{"identificadores":`))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_error")
}

func (s *RelationSuite) TestUnsupportedEventType() {
	path := "/relacao/gestacao"
	rr := testutil.DoRequest(s.router, s.signed(path, identifiersBody([2]string{"cpf", "12345678901"})))
	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Equal("tipo_evento não suportado", testutil.UnmarshalErrorResponse(s.T(), rr)["detail"])
}

func TestHandleRelationServiceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Resolve(gomock.Any(), testPath, models.EventTypeViolence, gomock.Any()).
		Return(models.Outcome{}, errors.New("connection refused"))

	h := New(svc, discardLogger())
	r := chi.NewRouter()
	h.Register(r)

	req := testutil.NewRequestWithBody(t, http.MethodPost, testPath, identifiersBody([2]string{"cpf", "12345678901"}))
	rr := testutil.DoRequest(r, req)

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONContains(t, rr, "detail", "internal error")
}

func TestHandleRelationPassesNormalizedSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Resolve(gomock.Any(), testPath, models.EventTypeViolence, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ models.EventType, set models.IdentifierSet) (models.Outcome, error) {
			items := set.Items()
			if len(items) != 1 || items[0].Value != "12345678901" {
				t.Errorf("unexpected identifiers: %+v", items)
			}
			return models.NoRelation(), nil
		})

	h := New(svc, discardLogger())
	r := chi.NewRouter()
	h.Register(r)

	body := identifiersBody([2]string{" cpf ", "123.456.789-01"}, [2]string{"cpf", "12345678901"})
	rr := testutil.DoRequest(r, testutil.NewRequestWithBody(t, http.MethodPost, testPath, body))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "relacionado", false)
}
