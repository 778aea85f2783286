package models

import (
	"fmt"
	"strings"
	"unicode"

	dErrors "healthlink/pkg/domain-errors"
)

// Identifier types whose values are compared as digit strings.
const (
	IdentifierCPF = "cpf"
	IdentifierCNS = "cns"
)

// Cardinality bounds for one query.
const (
	MinIdentifiers = 1
	MaxIdentifiers = 10
)

// Identifier is a typed external reference to a person.
type Identifier struct {
	Type  string
	Value string
}

// Normalize canonicalizes a raw value for its type: cpf and cns keep only
// digits, anything else is trimmed. Normalize(t, Normalize(t, v)) == Normalize(t, v).
func Normalize(idType, raw string) string {
	switch idType {
	case IdentifierCPF, IdentifierCNS:
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, raw)
	default:
		return strings.TrimFunc(raw, unicode.IsSpace)
	}
}

// IdentifierSet is a validated, de-duplicated batch of 1 to 10 identifiers.
// The zero value is empty and rejected by the resolver's callers.
type IdentifierSet struct {
	items []Identifier
}

// NewIdentifierSet normalizes and validates raw pairs.
func NewIdentifierSet(raw []Identifier) (IdentifierSet, error) {
	if len(raw) < MinIdentifiers {
		return IdentifierSet{}, dErrors.New(dErrors.CodeValidation, "É necessário informar ao menos um identificador")
	}
	if len(raw) > MaxIdentifiers {
		return IdentifierSet{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Máximo de %d identificadores por requisição", MaxIdentifiers))
	}

	seen := make(map[Identifier]struct{}, len(raw))
	items := make([]Identifier, 0, len(raw))
	for i, id := range raw {
		idType := strings.TrimSpace(id.Type)
		if idType == "" {
			return IdentifierSet{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("identificadores[%d].tipo é obrigatório", i))
		}
		value := Normalize(idType, id.Value)
		if value == "" {
			return IdentifierSet{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("identificadores[%d].valor é obrigatório", i))
		}
		norm := Identifier{Type: idType, Value: value}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		items = append(items, norm)
	}
	return IdentifierSet{items: items}, nil
}

func (s IdentifierSet) Len() int { return len(s.items) }

// Items returns a copy of the identifiers in input order.
func (s IdentifierSet) Items() []Identifier {
	return append([]Identifier(nil), s.items...)
}

// Columns splits the set into parallel type and value slices.
func (s IdentifierSet) Columns() (types, values []string) {
	types = make([]string, len(s.items))
	values = make([]string, len(s.items))
	for i, id := range s.items {
		types[i] = id.Type
		values[i] = id.Value
	}
	return types, values
}
