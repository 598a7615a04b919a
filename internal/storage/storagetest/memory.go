// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aanand-mishra/student-base/internal/storage"
	"github.com/aanand-mishra/student-base/internal/types"
)

// Memory is a map-backed storage.Storage that enforces the same
// uniqueness rules as the SQL schema: CPF unique where present, email
// unique among foreign students.
//
// The exported hook fields let tests inject failures and inspect the
// identifier lookups the importer performs.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	students map[int64]types.Student
	audit    []types.AuditEntry

	// InsertErr, when set, is consulted before each InsertStudents call.
	InsertErr func(batch []types.Student) error
	// ExistingErr, when set, fails ExistingCPFs and ExistingEmails.
	ExistingErr error
	// AuditErr, when set, fails InsertAuditLog.
	AuditErr error

	// CPFQueries and EmailQueries record every lookup argument.
	CPFQueries   [][]string
	EmailQueries [][]string
}

var _ storage.Storage = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{students: make(map[int64]types.Student)}
}

// Seed stores students directly, bypassing hooks. It panics on a
// duplicate so broken fixtures fail loudly.
func (m *Memory) Seed(students ...types.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range students {
		if err := m.checkUnique(s, 0); err != nil {
			panic(err)
		}
		m.add(s)
	}
}

// All returns every stored student ordered by ID.
func (m *Memory) All() []types.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AuditEntries returns the stored audit entries.
func (m *Memory) AuditEntries() []types.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AuditEntry(nil), m.audit...)
}

func (m *Memory) add(s types.Student) int64 {
	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.students[s.ID] = s
	return s.ID
}

func (m *Memory) checkUnique(s types.Student, skipID int64) error {
	for id, other := range m.students {
		if id == skipID {
			continue
		}
		if s.CPF != nil && other.CPF != nil && *s.CPF == *other.CPF {
			return storage.ErrDuplicate
		}
		if s.IsForeign && other.IsForeign && s.Email != nil && other.Email != nil && *s.Email == *other.Email {
			return storage.ErrDuplicate
		}
	}
	return nil
}

func (m *Memory) CreateStudent(_ context.Context, s types.Student) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(s, 0); err != nil {
		return 0, err
	}
	return m.add(s), nil
}

func (m *Memory) GetStudentByID(_ context.Context, id int64) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return types.Student{}, storage.ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListStudents(_ context.Context, f types.StudentFilter) (types.StudentPage, error) {
	f = f.Normalize()

	m.mu.Lock()
	matches := make([]types.Student, 0)
	search := strings.ToLower(f.Search)
	for _, s := range m.students {
		if f.Foreign != nil && s.IsForeign != *f.Foreign {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(types.Deref(s.CPF), search) &&
			!strings.Contains(strings.ToLower(types.Deref(s.Email)), search) {
			continue
		}
		matches = append(matches, s)
	}
	m.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })

	page := types.StudentPage{Items: []types.Student{}, Total: len(matches), Page: f.Page, PageSize: f.PageSize}
	if start := f.Offset(); start < len(matches) {
		end := min(start+f.PageSize, len(matches))
		page.Items = matches[start:end]
	}
	return page, nil
}

func (m *Memory) UpdateStudentByID(_ context.Context, id int64, s types.Student) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.students[id]
	if !ok {
		return types.Student{}, storage.ErrNotFound
	}
	if err := m.checkUnique(s, id); err != nil {
		return types.Student{}, err
	}
	cur.Name, cur.CPF, cur.Email, cur.IsForeign = s.Name, s.CPF, s.Email, s.IsForeign
	m.students[id] = cur
	return cur, nil
}

func (m *Memory) DeleteStudentByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *Memory) ExistingCPFs(_ context.Context, cpfs []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CPFQueries = append(m.CPFQueries, append([]string(nil), cpfs...))
	if m.ExistingErr != nil {
		return nil, m.ExistingErr
	}
	return m.existing(cpfs, func(s types.Student) *string { return s.CPF }), nil
}

func (m *Memory) ExistingEmails(_ context.Context, emails []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmailQueries = append(m.EmailQueries, append([]string(nil), emails...))
	if m.ExistingErr != nil {
		return nil, m.ExistingErr
	}
	return m.existing(emails, func(s types.Student) *string { return s.Email }), nil
}

func (m *Memory) existing(values []string, key func(types.Student) *string) map[string]struct{} {
	wanted := make(map[string]struct{}, len(values))
	for _, v := range values {
		wanted[v] = struct{}{}
	}
	found := make(map[string]struct{})
	for _, s := range m.students {
		if k := key(s); k != nil {
			if _, ok := wanted[*k]; ok {
				found[*k] = struct{}{}
			}
		}
	}
	return found
}

func (m *Memory) InsertStudents(_ context.Context, batch []types.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		if err := m.InsertErr(batch); err != nil {
			return err
		}
	}

	// All or nothing, like the SQL transaction.
	staged := make(map[int64]types.Student, len(m.students))
	for id, s := range m.students {
		staged[id] = s
	}
	saved, next := m.students, m.nextID
	m.students = staged
	for _, s := range batch {
		if err := m.checkUnique(s, 0); err != nil {
			m.students, m.nextID = saved, next
			return err
		}
		m.add(s)
	}
	return nil
}

func (m *Memory) FindEligible(_ context.Context, cpf, email string) (types.Student, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if cpf != "" && !s.IsForeign && types.Deref(s.CPF) == cpf {
			return s, true, nil
		}
		if cpf == "" && email != "" && s.IsForeign && types.Deref(s.Email) == email {
			return s, true, nil
		}
	}
	return types.Student{}, false, nil
}

func (m *Memory) InsertAuditLog(_ context.Context, e types.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AuditErr != nil {
		return m.AuditErr
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) Close() error { return nil }
