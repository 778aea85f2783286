package models

import (
	"fmt"
	"strings"
	"time"
)

// EventType is a monitored health-event category.
type EventType string

const EventTypeViolence EventType = "violencia"

var eventTypes = map[EventType]struct{}{
	EventTypeViolence: {},
}

// ParseEventType accepts only known categories.
func ParseEventType(raw string) (EventType, error) {
	t := EventType(strings.TrimSpace(raw))
	if _, ok := eventTypes[t]; !ok {
		return "", fmt.Errorf("unsupported event type %q", raw)
	}
	return t, nil
}

func (t EventType) String() string { return string(t) }

// Method tells how an event was linked to an individual.
type Method string

const (
	MethodNone                   Method = "none"
	MethodExplicitSemantic       Method = "explicit-semantic-model"
	MethodProbableClassification Method = "probable-classification-model"
	MethodCaseNotification       Method = "case-notification"
)

var legacyMethods = map[string]Method{
	"n_a":                           MethodNone,
	"modelo_semantica_explicita":    MethodExplicitSemantic,
	"modelo_classificacao_provavel": MethodProbableClassification,
	"notificacao_caso":              MethodCaseNotification,
}

// ParseMethod accepts canonical values and the labels emitted by the
// offline linkage pipeline.
func ParseMethod(raw string) (Method, error) {
	v := strings.TrimSpace(raw)
	switch m := Method(v); m {
	case MethodNone, MethodExplicitSemantic, MethodProbableClassification, MethodCaseNotification:
		return m, nil
	}
	if m, ok := legacyMethods[strings.ToLower(v)]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown identification method %q", raw)
}

// Eligible reports whether events with this method may answer a query.
func (m Method) Eligible() bool {
	return m != "" && m != MethodNone
}

// Priority orders eligible methods; lower wins.
func (m Method) Priority() int {
	if m == MethodExplicitSemantic {
		return 0
	}
	return 1
}

func (m Method) String() string { return string(m) }

// SourceBank is the upstream database a linked record came from.
type SourceBank string

const (
	SourceBankESUSAPS       SourceBank = "e-SUS APS"
	SourceBankSinanViolence SourceBank = "Sinan - Violências"
)

// ParseSourceBank reports ok=false for unknown banks.
func ParseSourceBank(raw string) (SourceBank, bool) {
	switch b := SourceBank(strings.TrimSpace(raw)); b {
	case SourceBankESUSAPS, SourceBankSinanViolence:
		return b, true
	}
	return "", false
}

// IndividualID is the surrogate key of an anonymized person.
type IndividualID int64

// Event is a dated health occurrence linked to an individual.
type Event struct {
	ID           int64
	IndividualID IndividualID
	Type         EventType
	Date         time.Time
	Method       Method
	// SourceBank and SourceRecordID are both set or both nil.
	SourceBank     *string
	SourceRecordID *string
}

// Provenance returns the source pair, or nils unless both are present.
func (e Event) Provenance() (*string, *string) {
	if e.SourceBank == nil || e.SourceRecordID == nil {
		return nil, nil
	}
	return e.SourceBank, e.SourceRecordID
}

// Outranks reports whether e should be returned in preference to other:
// explicit-semantic first, then most recent date, then highest id.
func (e Event) Outranks(other Event) bool {
	if p, q := e.Method.Priority(), other.Method.Priority(); p != q {
		return p < q
	}
	if !e.Date.Equal(other.Date) {
		return e.Date.After(other.Date)
	}
	return e.ID > other.ID
}
