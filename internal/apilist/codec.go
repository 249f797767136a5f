// SPDX-License-Identifier: Apache-2.0

package apilist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Columns is the documented CSV column order.
var Columns = []string{
	"interface",
	"name",
	"entity_type",
	"arguments",
	"idl_type",
	"syntactic_form",
	"use_counter",
	"secure_context",
	"high_entropy",
	"source_file",
	"source_line",
}

// ErrEmptyList indicates a CSV stream without a header row.
var ErrEmptyList = errors.New("apilist: empty CSV stream")

// DecodeError describes a malformed row. Row is 1-based and counts the header.
type DecodeError struct {
	Row    int
	Column string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("apilist: row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("apilist: row %d, column %q: %s", e.Row, e.Column, e.Reason)
}

// Decode reads a complete API list from r. The header row is kept verbatim;
// every following row must match the documented schema. CRLF input is
// tolerated by the CSV reader.
func Decode(r io.Reader) (*List, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyList
	}
	if err != nil {
		return nil, fmt.Errorf("apilist: read header: %w", err)
	}

	list := &List{Header: header}
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("apilist: row %d: %w", row, err)
		}
		entry, derr := decodeRecord(record, row)
		if derr != nil {
			return nil, derr
		}
		list.Entries = append(list.Entries, entry)
	}
	return list, nil
}

func decodeRecord(record []string, row int) (Entry, *DecodeError) {
	e := Entry{
		Interface:     record[0],
		Name:          record[1],
		EntityType:    EntityType(record[2]),
		Arguments:     record[3],
		IDLType:       record[4],
		SyntacticForm: record[5],
		UseCounter:    record[6],
		HighEntropy:   record[8],
		SourceFile:    record[9],
		SourceLine:    record[10],
	}

	if e.Interface == "" {
		return Entry{}, &DecodeError{Row: row, Column: "interface", Reason: "must not be empty"}
	}
	if !e.EntityType.Valid() {
		return Entry{}, &DecodeError{
			Row:    row,
			Column: "entity_type",
			Reason: fmt.Sprintf("unknown value %q", record[2]),
		}
	}

	switch strings.ToLower(strings.TrimSpace(record[7])) {
	case "true", "1":
		e.SecureContext = true
	case "false", "0", "":
		e.SecureContext = false
	default:
		return Entry{}, &DecodeError{
			Row:    row,
			Column: "secure_context",
			Reason: fmt.Sprintf("not a boolean: %q", record[7]),
		}
	}

	return e, nil
}

// Encode writes the list back out as CSV with LF line endings.
func Encode(w io.Writer, list *List) error {
	cw := csv.NewWriter(w)

	header := list.Header
	if len(header) == 0 {
		header = Columns
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("apilist: write header: %w", err)
	}
	for i, e := range list.Entries {
		if err := cw.Write(encodeRecord(e)); err != nil {
			return fmt.Errorf("apilist: write row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRecord(e Entry) []string {
	secure := "False"
	if e.SecureContext {
		secure = "True"
	}
	return []string{
		e.Interface,
		e.Name,
		string(e.EntityType),
		e.Arguments,
		e.IDLType,
		e.SyntacticForm,
		e.UseCounter,
		secure,
		e.HighEntropy,
		e.SourceFile,
		e.SourceLine,
	}
}
