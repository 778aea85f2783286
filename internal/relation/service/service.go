package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"healthlink/internal/integrity"
	"healthlink/internal/relation/metrics"
	"healthlink/internal/relation/models"
	"healthlink/internal/usage"
	"healthlink/pkg/platform/sentinel"
	"healthlink/pkg/requestcontext"
)

var tracer = otel.Tracer("healthlink/internal/relation/service")

// Store reads identifier ownership and events.
type Store interface {
	// RunInReadTx runs fn with a ctx bound to one read-only transaction.
	RunInReadTx(ctx context.Context, fn func(ctx context.Context) error) error
	// FindIndividuals returns the distinct owners of the identifiers, ascending.
	FindIndividuals(ctx context.Context, set models.IdentifierSet) ([]models.IndividualID, error)
	// FindTopEvent returns sentinel.ErrNotFound when no eligible event exists.
	FindTopEvent(ctx context.Context, id models.IndividualID, eventType models.EventType) (*models.Event, error)
}

// UsageRecorder counts calls. Record must not block.
type UsageRecorder interface {
	Record(ctx context.Context, hit usage.Hit)
}

// IntegrityPublisher receives conflict anomalies.
type IntegrityPublisher interface {
	PublishConflict(ctx context.Context, event integrity.ConflictEvent) error
}

// Service resolves identifier sets to health events.
type Service struct {
	store     Store
	usage     UsageRecorder
	integrity IntegrityPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithUsageRecorder(r UsageRecorder) Option {
	return func(s *Service) {
		s.usage = r
	}
}

func WithIntegrityPublisher(p IntegrityPublisher) Option {
	return func(s *Service) {
		s.integrity = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("relation store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Resolve finds the best eligible event of eventType for the individual the
// identifiers belong to. Conflicts and absences are outcomes; the error is
// reserved for infrastructure failures. Exactly one usage hit is recorded for
// every call that reaches an outcome.
func (s *Service) Resolve(ctx context.Context, endpoint string, eventType models.EventType, set models.IdentifierSet) (models.Outcome, error) {
	ctx, span := tracer.Start(ctx, "relation.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("tipo_evento", eventType.String()),
		attribute.Int("identifiers", set.Len()),
	)
	start := time.Now()
	defer func() { s.metrics.ObserveResolveLatency(time.Since(start)) }()

	if set.Len() == 0 {
		return models.Outcome{}, errors.New("resolve: empty identifier set")
	}

	var (
		individuals []models.IndividualID
		event       *models.Event
	)
	err := s.store.RunInReadTx(ctx, func(ctx context.Context) error {
		var err error
		individuals, err = s.store.FindIndividuals(ctx, set)
		if err != nil {
			return err
		}
		if len(individuals) != 1 {
			return nil
		}
		event, err = s.store.FindTopEvent(ctx, individuals[0], eventType)
		if errors.Is(err, sentinel.ErrNotFound) {
			event = nil
			return nil
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return models.Outcome{}, fmt.Errorf("resolve identifiers: %w", err)
	}

	var outcome models.Outcome
	switch {
	case len(individuals) > 1:
		outcome = models.Conflict(individuals)
		s.reportConflict(ctx, endpoint, eventType, set, individuals)
	case event != nil:
		outcome = models.Matched(*event)
	default:
		outcome = models.NoRelation()
	}

	span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))
	s.metrics.IncrementOutcome(eventType.String(), outcome.Kind.String())
	s.recordUsage(ctx, endpoint, eventType, outcome)
	return outcome, nil
}

func (s *Service) recordUsage(ctx context.Context, endpoint string, eventType models.EventType, outcome models.Outcome) {
	if s.usage == nil {
		return
	}
	hit := usage.Hit{
		Endpoint:  endpoint,
		EventType: eventType.String(),
		At:        requestcontext.Now(ctx),
		Matched:   outcome.Kind == models.OutcomeMatched,
	}
	if hit.Matched {
		hit.Method = outcome.Event.Method.String()
	}
	s.usage.Record(ctx, hit)
}

func (s *Service) reportConflict(ctx context.Context, endpoint string, eventType models.EventType, set models.IdentifierSet, individuals []models.IndividualID) {
	s.metrics.IncrementConflict()

	ids := make([]int64, len(individuals))
	for i, id := range individuals {
		ids[i] = int64(id)
	}
	types, _ := set.Columns()
	requestID := requestcontext.RequestID(ctx)

	s.logger.WarnContext(ctx, "identificadores_conflitantes",
		"request_id", requestID,
		"tipo_evento", eventType.String(),
		"individuos", ids,
		"tipos_identificador", types,
	)

	if s.integrity == nil {
		return
	}
	err := s.integrity.PublishConflict(ctx, integrity.ConflictEvent{
		RequestID:       requestID,
		Endpoint:        endpoint,
		EventType:       eventType.String(),
		IndividualIDs:   ids,
		IdentifierTypes: types,
		DetectedAt:      requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish integrity event",
			"request_id", requestID,
			"error", err,
		)
	}
}
