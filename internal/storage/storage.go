// Package storage defines the Storage interface: the contract any
// database backend must satisfy to hold the eligible-student base.
//
// Handlers and the importer depend only on this interface, so the
// SQLite backend (local development, tests) and the Postgres backend
// (production) are interchangeable, and unit tests can pass a fake.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/aanand-mishra/student-base/internal/types"
)

var (
	// ErrNotFound is returned when no student matches the requested ID.
	ErrNotFound = errors.New("student not found")

	// ErrDuplicate is returned when a write collides with an existing CPF
	// (domestic) or email (foreign).
	ErrDuplicate = errors.New("student already registered")
)

// likeEscaper escapes LIKE wildcards with a backslash.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ContainsPattern turns a search term into a LIKE pattern matching it as
// a literal substring. Queries using it must declare ESCAPE '\'.
func ContainsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

// Storage is the database contract.
type Storage interface {
	// CreateStudent inserts one student and returns its generated ID.
	CreateStudent(ctx context.Context, student types.Student) (int64, error)

	// GetStudentByID returns ErrNotFound when no row has that ID.
	GetStudentByID(ctx context.Context, id int64) (types.Student, error)

	// ListStudents returns one page of students matching filter,
	// newest first. Items is never nil.
	ListStudents(ctx context.Context, filter types.StudentFilter) (types.StudentPage, error)

	// UpdateStudentByID replaces name, CPF, email and the foreign flag
	// and returns the stored row.
	UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error)

	// DeleteStudentByID returns ErrNotFound when no row has that ID.
	DeleteStudentByID(ctx context.Context, id int64) error

	// ExistingCPFs returns the subset of cpfs already stored.
	// Only the given values are queried, never the whole table.
	ExistingCPFs(ctx context.Context, cpfs []string) (map[string]struct{}, error)

	// ExistingEmails returns the subset of emails already stored.
	ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error)

	// InsertStudents writes a batch atomically: either every row is
	// stored or none is. CreatedAt is assigned here.
	InsertStudents(ctx context.Context, students []types.Student) error

	// FindEligible looks up a student by CPF (domestic) or, when cpf is
	// empty, by email (foreign). ok is false when nobody matches.
	FindEligible(ctx context.Context, cpf, email string) (student types.Student, ok bool, err error)

	// InsertAuditLog records one administrative action.
	InsertAuditLog(ctx context.Context, entry types.AuditEntry) error

	Close() error
}
