package importer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aanand-mishra/student-base/internal/types"
)

// CPFLength is the number of digits of a normalized CPF.
const CPFLength = 11

// MinNameLength is the shortest accepted student name, in characters.
const MinNameLength = 3

var (
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	scientificPattern = regexp.MustCompile(`^\d+([.,]\d+)*[eE][+-]?\d+$`)
)

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsScientificNotation reports whether a raw CPF cell was turned into a
// number like "5,07629E+13" by a spreadsheet. The digits lost that way
// cannot be recovered.
func IsScientificNotation(raw string) bool {
	return scientificPattern.MatchString(strings.TrimSpace(raw))
}

// CleanCPF keeps only the ASCII digits of raw.
func CleanCPF(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// NormalizeCPF cleans raw and forces it to CPFLength digits: longer
// values keep their last 11 digits, shorter ones are left-padded with
// zeros. It returns "" when raw has no digits at all.
func NormalizeCPF(raw string) string {
	cpf := CleanCPF(raw)
	switch {
	case cpf == "":
		return ""
	case len(cpf) > CPFLength:
		return cpf[len(cpf)-CPFLength:]
	case len(cpf) < CPFLength:
		return strings.Repeat("0", CPFLength-len(cpf)) + cpf
	}
	return cpf
}

// NormalizeEmail trims and lower-cases an email cell.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeRow turns one data line into a student candidate, or reports
// why the line was rejected. lineNo is the 1-based line number in the
// file. The first failing check wins.
//
// A row is foreign when its CPF cell has no digits and it carries an
// email; any row with CPF digits is domestic, email or not.
func NormalizeRow(line string, lineNo int, cols ColumnMap) (types.Student, *types.InvalidRow) {
	invalid := func(format string, args ...any) (types.Student, *types.InvalidRow) {
		return types.Student{}, &types.InvalidRow{Line: lineNo, Reason: fmt.Sprintf(format, args...)}
	}

	fields, err := SplitRow(line)
	if err != nil {
		return invalid("malformed row: %v", err)
	}
	if len(fields) < 2 {
		return invalid("expected at least 2 columns, found %d", len(fields))
	}

	name := cell(fields, cols.Name)
	rawCPF := cell(fields, cols.CPF)
	email := NormalizeEmail(cell(fields, cols.Email))

	if name == "" {
		return invalid("empty name")
	}

	if IsScientificNotation(rawCPF) {
		return invalid("CPF %q was converted to scientific notation by a spreadsheet program; "+
			"format the CPF column as text and save the file again as plain CSV", rawCPF)
	}

	cpf := CleanCPF(rawCPF)

	if cpf == "" && email != "" {
		if !IsValidEmail(email) {
			return invalid("invalid email %q", email)
		}
		if utf8.RuneCountInString(name) < MinNameLength {
			return invalid("name %q is too short", name)
		}
		return types.Student{Name: name, Email: &email, IsForeign: true}, nil
	}

	if cpf == "" {
		return invalid("missing CPF")
	}

	cpf = NormalizeCPF(cpf)
	if strings.Trim(cpf, "0") == "" {
		return invalid("invalid CPF %q (all zeros)", rawCPF)
	}
	if len(cpf) != CPFLength {
		return invalid("invalid CPF %q (expected %d digits)", rawCPF, CPFLength)
	}
	if utf8.RuneCountInString(name) < MinNameLength {
		return invalid("name %q is too short", name)
	}

	return types.Student{Name: name, CPF: &cpf, Email: types.Ptr(email)}, nil
}

// cell returns the trimmed field at i, or "" when the row is
// too short.
func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}
