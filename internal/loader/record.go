package loader

import (
	"fmt"
	"strings"
	"time"

	"healthlink/internal/relation/models"
)

// Record is a normalized staging row.
type Record struct {
	PersonID       int64
	EventType      string
	Method         models.Method
	Date           time.Time
	IDType         string
	IDValue        string
	SourceBank     *string
	SourceRecordID *string
}

// Prepare normalizes a raw row. Rows without id_pessoa are skipped
// (ok=false). Identifier values are normalized the way queries are, legacy
// method labels are mapped to canonical ones, and an unknown source bank
// drops the provenance pair.
func Prepare(raw RawRecord) (rec Record, ok bool, err error) {
	if raw.PersonID == nil {
		return Record{}, false, nil
	}
	method, err := models.ParseMethod(raw.Method)
	if err != nil {
		return Record{}, false, err
	}
	if raw.Date.IsZero() {
		return Record{}, false, fmt.Errorf("data_identificacao is required")
	}
	idType := strings.TrimSpace(raw.IDType)
	idValue := models.Normalize(idType, raw.IDValue)
	if idType == "" || idValue == "" {
		return Record{}, false, fmt.Errorf("tipo_identificador and valor_identificador are required")
	}

	rec = Record{
		PersonID:  *raw.PersonID,
		EventType: strings.TrimSpace(raw.EventType),
		Method:    method,
		Date:      raw.Date,
		IDType:    idType,
		IDValue:   idValue,
	}
	if raw.SourceBank != nil && raw.SourceRecordID != nil {
		if bank, known := models.ParseSourceBank(*raw.SourceBank); known {
			b, r := string(bank), *raw.SourceRecordID
			rec.SourceBank, rec.SourceRecordID = &b, &r
		}
	}
	return rec, true, nil
}

// Values returns the row in Columns order for COPY.
func (r Record) Values() []any {
	return []any{
		r.PersonID,
		r.EventType,
		string(r.Method),
		r.Date,
		r.IDType,
		r.IDValue,
		r.SourceBank,
		r.SourceRecordID,
	}
}
