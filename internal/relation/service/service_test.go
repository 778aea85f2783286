package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,UsageRecorder,IntegrityPublisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthlink/internal/integrity"
	"healthlink/internal/relation/models"
	"healthlink/internal/relation/service/mocks"
	"healthlink/internal/usage"
	"healthlink/pkg/platform/sentinel"
	"healthlink/pkg/requestcontext"
)

// =============================================================================
// Resolve Test Suite
// =============================================================================
// Store, usage and integrity ports are mocked so each branch of the
// resolution can be checked for the exact calls it makes.

type ResolveSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	usage     *mocks.MockUsageRecorder
	integrity *mocks.MockIntegrityPublisher
	logs      *bytes.Buffer
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestResolveSuite(t *testing.T) {
	suite.Run(t, new(ResolveSuite))
}

func (s *ResolveSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.usage = mocks.NewMockUsageRecorder(s.ctrl)
	s.integrity = mocks.NewMockIntegrityPublisher(s.ctrl)
	s.logs = &bytes.Buffer{}

	var err error
	s.service, err = New(s.store,
		WithUsageRecorder(s.usage),
		WithIntegrityPublisher(s.integrity),
		WithLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
	)
	s.Require().NoError(err)

	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), s.now)

	s.store.EXPECT().RunInReadTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
}

func (s *ResolveSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResolveSuite) set(pairs ...string) models.IdentifierSet {
	var ids []models.Identifier
	for i := 0; i+1 < len(pairs); i += 2 {
		ids = append(ids, models.Identifier{Type: pairs[i], Value: pairs[i+1]})
	}
	set, err := models.NewIdentifierSet(ids)
	s.Require().NoError(err)
	return set
}

func (s *ResolveSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.ErrorContains(err, "relation store is required")
	})
	s.Run("options are applied", func() {
		svc, err := New(s.store, WithUsageRecorder(s.usage))
		s.NoError(err)
		s.Equal(s.usage, svc.usage)
	})
}

func (s *ResolveSuite) TestNoIndividualIsNoRelation() {
	set := s.set("cpf", "12345678901")
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return(nil, nil)
	s.usage.EXPECT().Record(gomock.Any(), usage.Hit{
		Endpoint: "/relacao/violencia", EventType: "violencia", At: s.now, Matched: false,
	})

	out, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.Require().NoError(err)
	s.Equal(models.OutcomeNoRelation, out.Kind)
	s.Nil(out.Event)
}

func (s *ResolveSuite) TestSingleIndividualWithEventMatches() {
	set := s.set("cpf", "123.456.789-01")
	bank, rec := "e-SUS APS", "R-9"
	event := &models.Event{
		ID: 5, IndividualID: 7, Type: models.EventTypeViolence,
		Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Method: models.MethodExplicitSemantic,
		SourceBank: &bank, SourceRecordID: &rec,
	}
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return([]models.IndividualID{7}, nil)
	s.store.EXPECT().FindTopEvent(gomock.Any(), models.IndividualID(7), models.EventTypeViolence).Return(event, nil)
	s.usage.EXPECT().Record(gomock.Any(), usage.Hit{
		Endpoint: "/relacao/violencia", EventType: "violencia", Method: "explicit-semantic-model", At: s.now, Matched: true,
	})

	out, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.Require().NoError(err)
	s.Equal(models.OutcomeMatched, out.Kind)
	s.Equal(*event, *out.Event)
}

func (s *ResolveSuite) TestSingleIndividualWithoutEligibleEvent() {
	set := s.set("cns", "700000000000000")
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return([]models.IndividualID{7}, nil)
	s.store.EXPECT().FindTopEvent(gomock.Any(), models.IndividualID(7), models.EventTypeViolence).Return(nil, sentinel.ErrNotFound)
	s.usage.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, hit usage.Hit) {
		s.False(hit.Matched)
		s.Empty(hit.Method)
	})

	out, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.Require().NoError(err)
	s.Equal(models.OutcomeNoRelation, out.Kind)
}

func (s *ResolveSuite) TestConflictRecordsOneMissLogsAndPublishes() {
	set := s.set("cpf", "12345678901", "cns", "700000000000000")
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return([]models.IndividualID{3, 8}, nil)
	s.usage.EXPECT().Record(gomock.Any(), gomock.Any()).Times(1).Do(func(_ context.Context, hit usage.Hit) {
		s.False(hit.Matched)
	})
	s.integrity.EXPECT().PublishConflict(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e integrity.ConflictEvent) error {
			s.Equal([]int64{3, 8}, e.IndividualIDs)
			s.Equal([]string{"cpf", "cns"}, e.IdentifierTypes)
			s.Equal("req-1", e.RequestID)
			s.Equal("/relacao/violencia", e.Endpoint)
			return nil
		})

	out, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.Require().NoError(err)
	s.Equal(models.OutcomeConflict, out.Kind)
	s.Equal([]models.IndividualID{3, 8}, out.Conflict.IndividualIDs)
	s.Contains(s.logs.String(), "identificadores_conflitantes")
	s.NotContains(s.logs.String(), "12345678901", "identifier values stay out of logs")
}

func (s *ResolveSuite) TestPublishFailureDoesNotChangeOutcome() {
	set := s.set("cpf", "12345678901", "cns", "700000000000000")
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return([]models.IndividualID{3, 8}, nil)
	s.usage.EXPECT().Record(gomock.Any(), gomock.Any())
	s.integrity.EXPECT().PublishConflict(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	out, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.Require().NoError(err)
	s.Equal(models.OutcomeConflict, out.Kind)
	s.Contains(s.logs.String(), "failed to publish integrity event")
}

func (s *ResolveSuite) TestStoreFailureIsErrorWithoutUsage() {
	set := s.set("cpf", "12345678901")
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return(nil, errors.New("connection refused"))

	_, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.Require().Error(err)
	s.ErrorContains(err, "connection refused")
}

func (s *ResolveSuite) TestEventLookupFailureIsError() {
	set := s.set("cpf", "12345678901")
	s.store.EXPECT().FindIndividuals(gomock.Any(), set).Return([]models.IndividualID{1}, nil)
	s.store.EXPECT().FindTopEvent(gomock.Any(), models.IndividualID(1), models.EventTypeViolence).Return(nil, errors.New("timeout"))

	_, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, set)
	s.ErrorContains(err, "timeout")
}

func (s *ResolveSuite) TestEmptySetIsRejected() {
	_, err := s.service.Resolve(s.ctx, "/relacao/violencia", models.EventTypeViolence, models.IdentifierSet{})
	s.Error(err)
}
