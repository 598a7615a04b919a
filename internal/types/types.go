// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// the importer, handlers and storage backends all import types without
// depending on each other.
package types

import "time"

// Student is one entry of the eligible-student base.
//
// A domestic student is identified by CPF; a foreign student has no CPF
// and is identified by email instead. Exactly one of the two governs
// uniqueness and auto-approval matching, selected by IsForeign.
//
// CPF and Email are pointers so that "absent" is encoded as JSON null
// and stored as SQL NULL rather than as an empty string.
type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"       validate:"required,min=3"`
	CPF       *string   `json:"cpf"        validate:"omitempty,len=11,numeric"`
	Email     *string   `json:"email"      validate:"omitempty,email"`
	IsForeign bool      `json:"is_foreign"`
	CreatedAt time.Time `json:"created_at"`
}

// Identifier returns the value that governs uniqueness for s: the CPF
// for domestic students and the email for foreign ones. It returns ""
// when that value is missing.
func (s Student) Identifier() string {
	if s.IsForeign {
		return Deref(s.Email)
	}
	return Deref(s.CPF)
}

// InvalidRow describes a CSV line the importer rejected.
// Line is 1-based and counts the header as line 1.
type InvalidRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult is what the import endpoint returns to the admin UI.
// Message may span several lines.
type ImportResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StudentFilter narrows a student listing.
//
//	Search   case-insensitive substring of name, CPF or email
//	Foreign  nil for all, otherwise only foreign / only domestic
//	Page     1-based page number
//	PageSize rows per page
type StudentFilter struct {
	Search   string
	Foreign  *bool
	Page     int
	PageSize int
}

// Pagination defaults and limits for StudentFilter.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps Page and PageSize into their valid ranges.
func (f StudentFilter) Normalize() StudentFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped before the current page.
func (f StudentFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// StudentPage is one page of a filtered listing. Total counts every
// matching row, not only the ones in Items.
type StudentPage struct {
	Items    []Student `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// AuditEntry is one record of an administrative action.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	Actor     string         `json:"actor,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Audit actions recorded by the service.
const (
	ActionUploadCSV     = "UPLOAD_CSV"
	ActionCreateStudent = "CREATE_STUDENT"
	ActionUpdateStudent = "UPDATE_STUDENT"
	ActionDeleteStudent = "DELETE_STUDENT"
)

// EntityStudentBase is the audit entity name for the eligible-student table.
const EntityStudentBase = "student_base"

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the string p points to, or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
