package handler

import (
	"healthlink/internal/relation/models"
	dErrors "healthlink/pkg/domain-errors"
)

// RelationRequest is the HTTP request body for POST /relacao/{tipo_evento}.
type RelationRequest struct {
	Identifiers []IdentifierRequest `json:"identificadores"`

	// Parsed values (populated by Validate)
	parsedSet models.IdentifierSet
}

// IdentifierRequest is one typed identifier in the request body.
type IdentifierRequest struct {
	Type  string `json:"tipo"`
	Value string `json:"valor"`
}

// Validate normalizes identifiers and enforces the 1 to 10 bound.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RelationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "request body is required")
	}
	raw := make([]models.Identifier, len(r.Identifiers))
	for i, id := range r.Identifiers {
		raw[i] = models.Identifier{Type: id.Type, Value: id.Value}
	}
	set, err := models.NewIdentifierSet(raw)
	if err != nil {
		return err
	}
	r.parsedSet = set
	return nil
}

// ParsedSet returns the validated identifier set.
func (r *RelationRequest) ParsedSet() models.IdentifierSet {
	return r.parsedSet
}
