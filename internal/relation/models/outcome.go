package models

import (
	"fmt"

	dErrors "healthlink/pkg/domain-errors"
)

// ConflictCode is the machine-readable code returned with HTTP 409.
const ConflictCode = "IDENTIFICADORES_CONFLITANTES"

// ConflictMessage is the client-facing description of a conflict.
const ConflictMessage = "Identificadores informados correspondem a mais de um indivíduo."

// OutcomeKind tags a resolution result.
type OutcomeKind int

const (
	OutcomeNoRelation OutcomeKind = iota
	OutcomeMatched
	OutcomeConflict
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeConflict:
		return "conflict"
	default:
		return "no_relation"
	}
}

// Outcome is the result of resolving an identifier set. Event is set only
// for OutcomeMatched and Conflict only for OutcomeConflict.
type Outcome struct {
	Kind     OutcomeKind
	Event    *Event
	Conflict *ConflictError
}

func NoRelation() Outcome {
	return Outcome{Kind: OutcomeNoRelation}
}

func Matched(e Event) Outcome {
	return Outcome{Kind: OutcomeMatched, Event: &e}
}

func Conflict(ids []IndividualID) Outcome {
	return Outcome{Kind: OutcomeConflict, Conflict: &ConflictError{IndividualIDs: ids}}
}

// ConflictError means supplied identifiers belong to more than one individual.
type ConflictError struct {
	IndividualIDs []IndividualID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identifiers resolve to %d individuals", len(e.IndividualIDs))
}

// DomainError maps the conflict onto the HTTP error taxonomy.
func (e *ConflictError) DomainError() error {
	return dErrors.New(dErrors.CodeConflict, ConflictMessage).WithReason(ConflictCode)
}
