package handler

import (
	"healthlink/internal/relation/models"
)

// RelationResponse is the HTTP response for a resolved request. Fields other
// than Related are null when nothing matched.
type RelationResponse struct {
	Related        bool    `json:"relacionado"`
	Method         *string `json:"metodo_identificacao"`
	Date           *string `json:"data_identificacao"`
	SourceBank     *string `json:"banco_origem_identificacao"`
	SourceRecordID *string `json:"id_registro_identificacao"`
}

// FromOutcome converts a non-conflict outcome into the response body.
func FromOutcome(o models.Outcome) *RelationResponse {
	if o.Kind != models.OutcomeMatched || o.Event == nil {
		return &RelationResponse{}
	}
	method := o.Event.Method.String()
	date := o.Event.Date.Format("2006-01-02")
	bank, record := o.Event.Provenance()
	return &RelationResponse{
		Related:        true,
		Method:         &method,
		Date:           &date,
		SourceBank:     bank,
		SourceRecordID: record,
	}
}
