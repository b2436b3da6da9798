package store

import (
	"encoding/json"
	"fmt"
)

// Row holds the JSON columns shared by the SQL backends.
type Row struct {
	Verdict     []byte
	Factors     []byte
	Explanation []byte // nil when the record has none
	Details     []byte // nil when the record has none
}

// EncodeRow marshals the structured parts of r.
func EncodeRow(r *Record) (Row, error) {
	var row Row
	var err error
	if row.Verdict, err = json.Marshal(r.Verdict); err != nil {
		return row, fmt.Errorf("encode verdict: %w", err)
	}
	if row.Factors, err = json.Marshal(r.Verdict.Factors); err != nil {
		return row, fmt.Errorf("encode factors: %w", err)
	}
	if r.Explanation != nil {
		if row.Explanation, err = json.Marshal(r.Explanation); err != nil {
			return row, fmt.Errorf("encode explanation: %w", err)
		}
	}
	if len(r.Details) > 0 {
		row.Details = r.Details
	}
	return row, nil
}

// DecodeRow fills r from the JSON columns.
func DecodeRow(r *Record, row Row) error {
	if err := json.Unmarshal(row.Verdict, &r.Verdict); err != nil {
		return fmt.Errorf("decode verdict: %w", err)
	}
	if len(row.Explanation) > 0 {
		r.Explanation = &Explanation{}
		if err := json.Unmarshal(row.Explanation, r.Explanation); err != nil {
			return fmt.Errorf("decode explanation: %w", err)
		}
	}
	if len(row.Details) > 0 {
		r.Details = json.RawMessage(row.Details)
	}
	return nil
}
