// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// It is the backend for local development and tests: everything lives
// in a single file and there is no server to run. The schema mirrors the
// Postgres one, including the partial unique indexes.
//
// WHY partial unique indexes?
// ───────────────────────────
// A domestic student is identified by CPF, a foreign one by email.
// Foreign rows store CPF as NULL, and two domestic students may share a
// family email. A plain UNIQUE(cpf) would still work (NULLs never
// collide) but UNIQUE(email) would reject those families, so the email
// index only covers rows WHERE is_foreign = 1.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/student-base/internal/config"
	"github.com/aanand-mishra/student-base/internal/storage"
	"github.com/aanand-mishra/student-base/internal/types"
)

// maxVars keeps IN (...) lists under SQLite's bound-parameter limit.
//
// WHY chunk at all?
//
//	Older SQLite builds cap a statement at 999 host parameters
//	(SQLITE_MAX_VARIABLE_NUMBER). A spreadsheet with a few thousand rows
//	would otherwise fail the existence lookup with "too many SQL
//	variables". Each chunk is a separate query and the results are merged.
const maxVars = 500

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         INTEGER   PRIMARY KEY AUTOINCREMENT,
		name       TEXT      NOT NULL,
		cpf        TEXT,
		email      TEXT,
		is_foreign INTEGER   NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	// CPF is unique only where present; foreign students have none.
	`CREATE UNIQUE INDEX IF NOT EXISTS students_cpf_key
		ON students (cpf) WHERE cpf IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS students_foreign_email_key
		ON students (email) WHERE is_foreign = 1`,
	`CREATE INDEX IF NOT EXISTS students_email_idx ON students (email)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id         TEXT      PRIMARY KEY,
		action     TEXT      NOT NULL,
		entity     TEXT      NOT NULL,
		actor      TEXT,
		details    TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
}

const studentColumns = "id, name, cpf, email, is_foreign, created_at"

// SQLite is the concrete implementation of storage.Storage.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at cfg.Path and creates the schema if
// it does not already exist.
func New(cfg config.Storage) (*SQLite, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite.New: create schema: %w", err)
		}
	}

	return &SQLite{Db: db}, nil
}

func (s *SQLite) Close() error {
	return s.Db.Close()
}

// mapErr turns a unique-constraint violation into storage.ErrDuplicate.
func mapErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, se.Error())
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (types.Student, error) {
	var (
		student    types.Student
		cpf, email sql.NullString
	)
	if err := row.Scan(
		&student.ID,
		&student.Name,
		&cpf,
		&email,
		&student.IsForeign,
		&student.CreatedAt,
	); err != nil {
		return types.Student{}, err
	}
	if cpf.Valid {
		student.CPF = &cpf.String
	}
	if email.Valid {
		student.Email = &email.String
	}
	return student, nil
}

func (s *SQLite) CreateStudent(ctx context.Context, student types.Student) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (name, cpf, email, is_foreign, created_at) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx,
		student.Name, student.CPF, student.Email, student.IsForeign, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: exec: %w", mapErr(err))
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: last insert id: %w", err)
	}
	return lastID, nil
}

func (s *SQLite) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	row := s.Db.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ? LIMIT 1", id)

	student, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}
	return student, nil
}

func (s *SQLite) ListStudents(ctx context.Context, filter types.StudentFilter) (types.StudentPage, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		like := storage.ContainsPattern(strings.ToLower(filter.Search))
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR cpf LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if filter.Foreign != nil {
		where = append(where, "is_foreign = ?")
		args = append(args, *filter.Foreign)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := types.StudentPage{Items: make([]types.Student, 0), Page: filter.Page, PageSize: filter.PageSize}

	if err := s.Db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students"+clause, args...).Scan(&page.Total); err != nil {
		return types.StudentPage{}, fmt.Errorf("ListStudents: count: %w", err)
	}

	rows, err := s.Db.QueryContext(ctx,
		"SELECT "+studentColumns+" FROM students"+clause+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, filter.PageSize, filter.Offset())...)
	if err != nil {
		return types.StudentPage{}, fmt.Errorf("ListStudents: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return types.StudentPage{}, fmt.Errorf("ListStudents: scan row: %w", err)
		}
		page.Items = append(page.Items, student)
	}
	if err := rows.Err(); err != nil {
		return types.StudentPage{}, fmt.Errorf("ListStudents: rows iteration: %w", err)
	}

	return page, nil
}

func (s *SQLite) UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"UPDATE students SET name = ?, cpf = ?, email = ?, is_foreign = ? WHERE id = ?",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, student.Name, student.CPF, student.Email, student.IsForeign, id)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", mapErr(err))
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
	}

	return s.GetStudentByID(ctx, id)
}

func (s *SQLite) DeleteStudentByID(ctx context.Context, id int64) error {
	result, err := s.Db.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *SQLite) ExistingCPFs(ctx context.Context, cpfs []string) (map[string]struct{}, error) {
	found, err := s.existing(ctx, "cpf", cpfs)
	if err != nil {
		return nil, fmt.Errorf("ExistingCPFs: %w", err)
	}
	return found, nil
}

func (s *SQLite) ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	found, err := s.existing(ctx, "email", emails)
	if err != nil {
		return nil, fmt.Errorf("ExistingEmails: %w", err)
	}
	return found, nil
}

// existing queries column for the given values in chunks of maxVars.
func (s *SQLite) existing(ctx context.Context, column string, values []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})

	for start := 0; start < len(values); start += maxVars {
		chunk := values[start:min(start+maxVars, len(values))]

		args := make([]any, len(chunk))
		for i, v := range chunk {
			args[i] = v
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.Db.QueryContext(ctx,
			fmt.Sprintf("SELECT %[1]s FROM students WHERE %[1]s IN (%[2]s)", column, placeholders),
			args...)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan: %w", err)
			}
			found[v] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("rows iteration: %w", err)
		}
	}

	return found, nil
}

func (s *SQLite) InsertStudents(ctx context.Context, students []types.Student) error {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertStudents: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO students (name, cpf, email, is_foreign, created_at) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("InsertStudents: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, st := range students {
		if _, err := stmt.ExecContext(ctx, st.Name, st.CPF, st.Email, st.IsForeign, now); err != nil {
			return fmt.Errorf("InsertStudents: exec: %w", mapErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertStudents: commit: %w", err)
	}
	return nil
}

func (s *SQLite) FindEligible(ctx context.Context, cpf, email string) (types.Student, bool, error) {
	var row *sql.Row
	switch {
	case cpf != "":
		row = s.Db.QueryRowContext(ctx,
			"SELECT "+studentColumns+" FROM students WHERE cpf = ? AND is_foreign = 0 LIMIT 1", cpf)
	case email != "":
		row = s.Db.QueryRowContext(ctx,
			"SELECT "+studentColumns+" FROM students WHERE email = ? AND is_foreign = 1 LIMIT 1", email)
	default:
		return types.Student{}, false, nil
	}

	student, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Student{}, false, nil
	}
	if err != nil {
		return types.Student{}, false, fmt.Errorf("FindEligible: scan: %w", err)
	}
	return student, true, nil
}

func (s *SQLite) InsertAuditLog(ctx context.Context, entry types.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("InsertAuditLog: marshal details: %w", err)
	}

	_, err = s.Db.ExecContext(ctx,
		"INSERT INTO audit_logs (id, action, entity, actor, details, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.Action, entry.Entity, entry.Actor, string(details), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertAuditLog: exec: %w", err)
	}
	return nil
}
