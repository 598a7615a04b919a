// Package audit records administrative actions (CSV uploads, manual
// edits) either in the database or on a Kafka topic.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aanand-mishra/student-base/internal/types"
)

// Logger records one audit entry.
type Logger interface {
	Log(ctx context.Context, entry types.AuditEntry) error
}

// NewEntry builds an entry with a fresh ID and the current UTC time.
func NewEntry(action, actor string, details map[string]any) types.AuditEntry {
	return types.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Entity:    types.EntityStudentBase,
		Actor:     actor,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}

// Writer is the part of storage.Storage that StoreLogger needs.
type Writer interface {
	InsertAuditLog(ctx context.Context, entry types.AuditEntry) error
}

// StoreLogger writes entries to the audit_logs table.
type StoreLogger struct {
	w Writer
}

func NewStoreLogger(w Writer) *StoreLogger {
	return &StoreLogger{w: w}
}

func (l *StoreLogger) Log(ctx context.Context, entry types.AuditEntry) error {
	return l.w.InsertAuditLog(ctx, entry)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Log(context.Context, types.AuditEntry) error { return nil }
