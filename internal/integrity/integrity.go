// Package integrity reports data anomalies observed while serving requests,
// such as identifiers that resolve to more than one individual.
package integrity

import (
	"context"
	"log/slog"
	"time"
)

// ConflictEvent describes identifiers that resolved to several individuals.
// Identifier values are never included.
type ConflictEvent struct {
	RequestID       string    `json:"request_id,omitempty"`
	Endpoint        string    `json:"endpoint"`
	EventType       string    `json:"tipo_evento"`
	IndividualIDs   []int64   `json:"individuos"`
	IdentifierTypes []string  `json:"tipos_identificador"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Publisher ships integrity events somewhere an operator will see them.
type Publisher interface {
	PublishConflict(ctx context.Context, event ConflictEvent) error
}

// LogPublisher writes events to the structured log only.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishConflict(ctx context.Context, event ConflictEvent) error {
	p.logger.WarnContext(ctx, "integrity_conflict",
		"request_id", event.RequestID,
		"endpoint", event.Endpoint,
		"tipo_evento", event.EventType,
		"individuos", event.IndividualIDs,
		"tipos_identificador", event.IdentifierTypes,
	)
	return nil
}
