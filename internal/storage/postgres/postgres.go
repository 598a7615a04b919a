// Package postgres provides the production storage.Storage backed by
// PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aanand-mishra/student-base/internal/config"
	"github.com/aanand-mishra/student-base/internal/storage"
	"github.com/aanand-mishra/student-base/internal/types"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         BIGSERIAL   PRIMARY KEY,
		name       TEXT        NOT NULL,
		cpf        TEXT,
		email      TEXT,
		is_foreign BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// Partial: foreign students have no CPF, so ON CONFLICT (cpf) is not
	// usable and callers pre-filter existing rows instead.
	`CREATE UNIQUE INDEX IF NOT EXISTS students_cpf_key
		ON students (cpf) WHERE cpf IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS students_foreign_email_key
		ON students (email) WHERE is_foreign`,
	`CREATE INDEX IF NOT EXISTS students_email_idx ON students (email)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id         UUID        PRIMARY KEY,
		action     TEXT        NOT NULL,
		entity     TEXT        NOT NULL,
		actor      TEXT,
		details    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

const studentColumns = "id, name, cpf, email, is_foreign, created_at"

// Postgres is the PostgreSQL implementation of storage.Storage.
type Postgres struct {
	Db *sql.DB
}

var _ storage.Storage = (*Postgres)(nil)

// New connects using cfg.DSN, checks the connection and creates the
// schema if needed.
func New(cfg config.Storage) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres.New: create schema: %w", err)
		}
	}

	return &Postgres{Db: db}, nil
}

func (p *Postgres) Close() error {
	return p.Db.Close()
}

// mapErr turns a unique violation into storage.ErrDuplicate.
func mapErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, pqErr.Message)
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

func (p *Postgres) CreateStudent(ctx context.Context, student types.Student) (int64, error) {
	var id int64
	err := p.Db.QueryRowContext(ctx,
		`INSERT INTO students (name, cpf, email, is_foreign, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		student.Name, student.CPF, student.Email, student.IsForeign, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: insert: %w", mapErr(err))
	}
	return id, nil
}

func (p *Postgres) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	row := p.Db.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = $1", id)

	student, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}
	return student, nil
}

// listQuery builds the WHERE clause and arguments for filter.
func listQuery(filter types.StudentFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, storage.ContainsPattern(filter.Search))
		n := len(args)
		where = append(where, fmt.Sprintf(
			`(name ILIKE $%[1]d ESCAPE '\' OR cpf LIKE $%[1]d ESCAPE '\' OR email ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if filter.Foreign != nil {
		args = append(args, *filter.Foreign)
		where = append(where, fmt.Sprintf("is_foreign = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (p *Postgres) ListStudents(ctx context.Context, filter types.StudentFilter) (types.StudentPage, error) {
	filter = filter.Normalize()
	clause, args := listQuery(filter)

	page := types.StudentPage{Items: make([]types.Student, 0), Page: filter.Page, PageSize: filter.PageSize}

	if err := p.Db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students"+clause, args...).Scan(&page.Total); err != nil {
		return types.StudentPage{}, fmt.Errorf("ListStudents: count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		studentColumns, clause, len(args)+1, len(args)+2)
	rows, err := p.Db.QueryContext(ctx, query, append(args, filter.PageSize, filter.Offset())...)
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

func (p *Postgres) UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error) {
	row := p.Db.QueryRowContext(ctx,
		`UPDATE students SET name = $1, cpf = $2, email = $3, is_foreign = $4
		 WHERE id = $5 RETURNING `+studentColumns,
		student.Name, student.CPF, student.Email, student.IsForeign, id)

	updated, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", mapErr(err))
	}
	return updated, nil
}

func (p *Postgres) DeleteStudentByID(ctx context.Context, id int64) error {
	result, err := p.Db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (p *Postgres) ExistingCPFs(ctx context.Context, cpfs []string) (map[string]struct{}, error) {
	found, err := p.existing(ctx, "SELECT cpf FROM students WHERE cpf = ANY($1)", cpfs)
	if err != nil {
		return nil, fmt.Errorf("ExistingCPFs: %w", err)
	}
	return found, nil
}

func (p *Postgres) ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	found, err := p.existing(ctx, "SELECT email FROM students WHERE email = ANY($1)", emails)
	if err != nil {
		return nil, fmt.Errorf("ExistingEmails: %w", err)
	}
	return found, nil
}

func (p *Postgres) existing(ctx context.Context, query string, values []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(values) == 0 {
		return found, nil
	}

	rows, err := p.Db.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		found[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return found, nil
}

// InsertStudents streams the batch with COPY inside one transaction.
func (p *Postgres) InsertStudents(ctx context.Context, students []types.Student) error {
	tx, err := p.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertStudents: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		pq.CopyIn("students", "name", "cpf", "email", "is_foreign", "created_at"))
	if err != nil {
		return fmt.Errorf("InsertStudents: prepare copy: %w", err)
	}

	now := time.Now().UTC()
	for _, s := range students {
		if _, err := stmt.ExecContext(ctx, s.Name, s.CPF, s.Email, s.IsForeign, now); err != nil {
			stmt.Close()
			return fmt.Errorf("InsertStudents: copy row: %w", mapErr(err))
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("InsertStudents: flush: %w", mapErr(err))
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("InsertStudents: close copy: %w", mapErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertStudents: commit: %w", mapErr(err))
	}
	return nil
}

func (p *Postgres) FindEligible(ctx context.Context, cpf, email string) (types.Student, bool, error) {
	var row *sql.Row
	switch {
	case cpf != "":
		row = p.Db.QueryRowContext(ctx,
			"SELECT "+studentColumns+" FROM students WHERE cpf = $1 AND NOT is_foreign LIMIT 1", cpf)
	case email != "":
		row = p.Db.QueryRowContext(ctx,
			"SELECT "+studentColumns+" FROM students WHERE email = $1 AND is_foreign LIMIT 1", email)
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

func (p *Postgres) InsertAuditLog(ctx context.Context, entry types.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("InsertAuditLog: marshal details: %w", err)
	}

	_, err = p.Db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity, actor, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Action, entry.Entity, entry.Actor, string(details), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertAuditLog: exec: %w", err)
	}
	return nil
}
