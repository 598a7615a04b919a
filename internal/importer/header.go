// Package importer implements the student-base CSV import pipeline:
//
//	raw bytes → DecodeText → ParseHeader → NormalizeRow (per line)
//	  → Dedupe → existing-record filter → batch inserts → report
//
// The pure stages (header parsing, row normalization, deduplication,
// reporting) are plain functions so they can be tested without a store.
// Importer wires them to a storage.Storage and the best-effort side
// effects (audit log, UI cache revalidation).
package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ColumnMap says where each semantic column lives in a row.
type ColumnMap struct {
	Delimiter rune
	Name      int
	CPF       int
	Email     int
}

// DefaultColumns is the column order assumed when a header cell cannot
// be recognised: name, CPF, email.
var DefaultColumns = ColumnMap{Delimiter: ',', Name: 0, CPF: 1, Email: 2}

// Header keywords, matched as substrings of the lower-cased header cell.
// "alun" covers aluno/aluna/alunos; "comprador" comes from e-commerce
// exports that put email before the document column.
var (
	nameKeywords  = []string{"nome", "comprador", "alun"}
	emailKeywords = []string{"email", "e-mail"}
	cpfKeywords   = []string{"cpf", "documento", "doc"}
)

// DetectDelimiter returns ';' when line contains a semicolon, ',' otherwise.
func DetectDelimiter(line string) rune {
	if strings.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}

// ParseHeader inspects the header line and maps the name, CPF and email
// columns. Each column takes the first cell containing one of its
// keywords and falls back to its DefaultColumns position independently.
func ParseHeader(header string) ColumnMap {
	delim := DetectDelimiter(header)
	cols := DefaultColumns
	cols.Delimiter = delim

	raw, err := SplitRow(header)
	if err != nil {
		return cols
	}
	cells := make([]string, len(raw))
	for i, c := range raw {
		cells[i] = strings.ToLower(strings.TrimSpace(c))
	}

	if i := findColumn(cells, nameKeywords); i >= 0 {
		cols.Name = i
	}
	if i := findColumn(cells, cpfKeywords); i >= 0 {
		cols.CPF = i
	}
	if i := findColumn(cells, emailKeywords); i >= 0 {
		cols.Email = i
	}
	return cols
}

// SplitRow splits one line into its cells with encoding/csv, using the
// delimiter detected on that very line.
//
// WHY one reader per line instead of one reader per file?
//
//	Exports glued together from several spreadsheets mix ';' and ','
//	from line to line, and a csv.Reader has a single Comma. Reading one
//	line at a time also keeps a malformed row local: it becomes an
//	invalid row instead of aborting the whole file.
//
// Quoting follows RFC 4180, so a spreadsheet cell like "5,07629E+13"
// stays one cell in a comma-delimited file. LazyQuotes tolerates stray
// quotes inside unquoted cells and FieldsPerRecord = -1 allows ragged
// rows; short rows are rejected later with a reason.
func SplitRow(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = DetectDelimiter(line)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	fields, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return fields, err
}

// findColumn returns the index of the first cell containing any keyword,
// or -1.
func findColumn(cells []string, keywords []string) int {
	for i, cell := range cells {
		for _, kw := range keywords {
			if strings.Contains(cell, kw) {
				return i
			}
		}
	}
	return -1
}
