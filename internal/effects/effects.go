// Package effects runs the side effects that follow a change to the
// student base: the audit entry and the UI cache revalidation.
//
// Both are best-effort. Errors and panics are logged and swallowed here
// so that a completed write is never reported to the admin as failed.
package effects

import (
	"context"
	"log/slog"
	"time"

	"github.com/aanand-mishra/student-base/internal/audit"
	"github.com/aanand-mishra/student-base/internal/revalidate"
)

// stepTimeout bounds each side effect independently of the request.
const stepTimeout = 5 * time.Second

// Runner fires the post-write side effects. A nil *Runner does nothing.
type Runner struct {
	audit       audit.Logger
	revalidator revalidate.Revalidator
	path        string
	log         *slog.Logger
}

// New builds a Runner. path is the UI page revalidated after each
// change; a nil log uses slog.Default().
func New(a audit.Logger, r revalidate.Revalidator, path string, log *slog.Logger) *Runner {
	if a == nil {
		a = audit.Nop{}
	}
	if r == nil {
		r = revalidate.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{audit: a, revalidator: r, path: path, log: log}
}

// Audit records action with details.
func (r *Runner) Audit(ctx context.Context, action, actor string, details map[string]any) {
	if r == nil {
		return
	}
	r.guard(ctx, "audit", func(ctx context.Context) error {
		return r.audit.Log(ctx, audit.NewEntry(action, actor, details))
	})
}

// Revalidate asks the UI to refresh the student base page.
func (r *Runner) Revalidate(ctx context.Context) {
	if r == nil {
		return
	}
	r.guard(ctx, "revalidate", func(ctx context.Context) error {
		return r.revalidator.Revalidate(ctx, r.path)
	})
}

// After runs Audit then Revalidate.
func (r *Runner) After(ctx context.Context, action, actor string, details map[string]any) {
	r.Audit(ctx, action, actor, details)
	r.Revalidate(ctx)
}

func (r *Runner) guard(ctx context.Context, step string, fn func(context.Context) error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("best-effort step panicked",
				slog.String("step", step),
				slog.Any("panic", p))
		}
	}()

	// The write already happened; a client disconnect must not cancel
	// its bookkeeping.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stepTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		r.log.Warn("best-effort step failed",
			slog.String("step", step),
			slog.String("error", err.Error()))
	}
}
