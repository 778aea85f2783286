package loader

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Columns lists the columns a results file must carry, in staging order.
var Columns = []string{
	"id_pessoa",
	"tipo_evento",
	"metodo_identificacao",
	"data_identificacao",
	"tipo_identificador",
	"valor_identificador",
	"banco_origem_identificacao",
	"id_registro_identificacao",
}

const (
	colPerson = iota
	colEventType
	colMethod
	colDate
	colIDType
	colIDValue
	colBank
	colRecordID
)

// RawRecord is one parquet row before normalization. Nil pointers are nulls.
type RawRecord struct {
	PersonID       *int64
	EventType      string
	Method         string
	Date           time.Time
	IDType         string
	IDValue        string
	SourceBank     *string
	SourceRecordID *string
}

// MissingColumnsError reports required columns absent from a file.
type MissingColumnsError struct {
	Path    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("parquet %q is missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

type dateEncoding int

const (
	dateUnixSeconds dateEncoding = iota
	dateDays
	dateMillis
	dateMicros
	dateNanos
)

// Source streams RawRecords out of one parquet file, batchSize rows at a time.
type Source struct {
	path    string
	file    *os.File
	groups  []parquet.RowGroup
	group   int
	rows    parquet.Rows
	buf     []parquet.Row
	pos, n  int
	leaf    map[int]int
	dateEnc dateEncoding
}

// OpenSource opens path and checks that every required column is present.
func OpenSource(path string, batchSize int) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %q: %w", path, err)
	}

	schema := pf.Schema()
	leaf := make(map[int]int, len(Columns))
	var missing []string
	dateEnc := dateUnixSeconds
	for i, name := range Columns {
		col, ok := schema.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		leaf[col.ColumnIndex] = i
		if i == colDate {
			dateEnc = dateEncodingOf(col.Node)
		}
	}
	if len(missing) > 0 {
		f.Close()
		return nil, &MissingColumnsError{Path: path, Missing: missing}
	}

	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Source{
		path:    path,
		file:    f,
		groups:  pf.RowGroups(),
		buf:     make([]parquet.Row, batchSize),
		leaf:    leaf,
		dateEnc: dateEnc,
	}, nil
}

// Close releases the file.
func (s *Source) Close() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return s.file.Close()
}

// Next returns the next record or io.EOF.
func (s *Source) Next() (RawRecord, error) {
	for s.pos >= s.n {
		if err := s.fill(); err != nil {
			return RawRecord{}, err
		}
	}
	row := s.buf[s.pos]
	s.pos++
	return s.decode(row)
}

func (s *Source) fill() error {
	for {
		if s.rows == nil {
			if s.group >= len(s.groups) {
				return io.EOF
			}
			s.rows = s.groups[s.group].Rows()
			s.group++
		}
		n, err := s.rows.ReadRows(s.buf)
		s.pos, s.n = 0, n
		if errors.Is(err, io.EOF) {
			s.rows.Close()
			s.rows = nil
			if n > 0 {
				return nil
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read parquet %q: %w", s.path, err)
		}
		if n > 0 {
			return nil
		}
	}
}

func (s *Source) decode(row parquet.Row) (RawRecord, error) {
	var rec RawRecord
	for _, v := range row {
		col, ok := s.leaf[v.Column()]
		if !ok || v.IsNull() {
			continue
		}
		switch col {
		case colPerson:
			id, err := valueInt64(v)
			if err != nil {
				return RawRecord{}, fmt.Errorf("id_pessoa: %w", err)
			}
			rec.PersonID = &id
		case colEventType:
			rec.EventType = valueString(v)
		case colMethod:
			rec.Method = valueString(v)
		case colDate:
			d, err := s.valueDate(v)
			if err != nil {
				return RawRecord{}, fmt.Errorf("data_identificacao: %w", err)
			}
			rec.Date = d
		case colIDType:
			rec.IDType = valueString(v)
		case colIDValue:
			rec.IDValue = valueString(v)
		case colBank:
			b := valueString(v)
			rec.SourceBank = &b
		case colRecordID:
			r := valueString(v)
			rec.SourceRecordID = &r
		}
	}
	return rec, nil
}

func dateEncodingOf(n parquet.Node) dateEncoding {
	lt := n.Type().LogicalType()
	if lt == nil {
		return dateUnixSeconds
	}
	switch {
	case lt.Date != nil:
		return dateDays
	case lt.Timestamp != nil:
		switch u := lt.Timestamp.Unit; {
		case u.Millis != nil:
			return dateMillis
		case u.Micros != nil:
			return dateMicros
		case u.Nanos != nil:
			return dateNanos
		}
	}
	return dateUnixSeconds
}

func (s *Source) valueDate(v parquet.Value) (time.Time, error) {
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return ParseDate(string(v.ByteArray()))
	case parquet.Int32, parquet.Int64:
		n := v.Int64()
		if v.Kind() == parquet.Int32 {
			n = int64(v.Int32())
		}
		var t time.Time
		switch s.dateEnc {
		case dateDays:
			t = time.Unix(0, 0).UTC().AddDate(0, 0, int(n))
		case dateMillis:
			t = time.UnixMilli(n)
		case dateMicros:
			t = time.UnixMicro(n)
		case dateNanos:
			t = time.Unix(0, n)
		default:
			t = time.Unix(n, 0)
		}
		return truncateDay(t), nil
	case parquet.Double, parquet.Float:
		f := v.Double()
		if v.Kind() == parquet.Float {
			f = float64(v.Float())
		}
		sec, frac := math.Modf(f)
		return truncateDay(time.Unix(int64(sec), int64(frac*1e9))), nil
	}
	return time.Time{}, fmt.Errorf("unsupported parquet type %s", v.Kind())
}

// ParseDate accepts a full ISO timestamp or a bare date; only the first ten
// characters are read.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func valueString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	}
	return v.String()
}

func valueInt64(v parquet.Value) (int64, error) {
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32()), nil
	case parquet.Int64:
		return v.Int64(), nil
	case parquet.Double, parquet.Float:
		f := v.Double()
		if v.Kind() == parquet.Float {
			f = float64(v.Float())
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("non-integral value %v", f)
		}
		return int64(f), nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return strconv.ParseInt(strings.TrimSpace(string(v.ByteArray())), 10, 64)
	}
	return 0, fmt.Errorf("unsupported parquet type %s", v.Kind())
}
