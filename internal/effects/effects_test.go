package effects

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aanand-mishra/student-base/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingAudit struct {
	entries []types.AuditEntry
	err     error
	panics  bool
}

func (a *recordingAudit) Log(_ context.Context, e types.AuditEntry) error {
	if a.panics {
		panic("audit exploded")
	}
	a.entries = append(a.entries, e)
	return a.err
}

type recordingRevalidator struct {
	paths []string
	err   error
}

func (r *recordingRevalidator) Revalidate(_ context.Context, path string) error {
	r.paths = append(r.paths, path)
	return r.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAfterRunsBothSteps(t *testing.T) {
	a := &recordingAudit{}
	rv := &recordingRevalidator{}
	r := New(a, rv, "/admin/students", quietLogger())

	r.After(context.Background(), types.ActionUploadCSV, "admin", map[string]any{"imported": 2})

	require.Len(t, a.entries, 1)
	assert.Equal(t, types.ActionUploadCSV, a.entries[0].Action)
	assert.Equal(t, []string{"/admin/students"}, rv.paths)
}

func TestFailuresAreSwallowed(t *testing.T) {
	a := &recordingAudit{err: errors.New("insert failed")}
	rv := &recordingRevalidator{err: errors.New("timeout")}
	r := New(a, rv, "/admin/students", quietLogger())

	assert.NotPanics(t, func() {
		r.After(context.Background(), types.ActionUploadCSV, "", nil)
	})
	assert.Len(t, rv.paths, 1, "revalidation still runs after an audit failure")
}

func TestPanicsAreRecovered(t *testing.T) {
	rv := &recordingRevalidator{}
	r := New(&recordingAudit{panics: true}, rv, "/p", quietLogger())

	assert.NotPanics(t, func() {
		r.After(context.Background(), types.ActionCreateStudent, "", nil)
	})
	assert.Len(t, rv.paths, 1)
}

func TestCanceledRequestStillRecords(t *testing.T) {
	a := &recordingAudit{}
	r := New(a, nil, "/p", quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Audit(ctx, types.ActionDeleteStudent, "", nil)

	assert.Len(t, a.entries, 1)
}

func TestNilRunner(t *testing.T) {
	var r *Runner
	assert.NotPanics(t, func() {
		r.After(context.Background(), types.ActionUploadCSV, "", nil)
	})
}
