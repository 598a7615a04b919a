package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aanand-mishra/student-base/internal/effects"
	"github.com/aanand-mishra/student-base/internal/storage"
	"github.com/aanand-mishra/student-base/internal/types"
)

// ErrNoData is returned when the upload has a header but no data rows,
// or nothing at all.
var ErrNoData = errors.New("the file has no data rows")

// Batch names used in PersistenceError.
const (
	BatchDomestic = "domestic"
	BatchForeign  = "foreign"
)

// PersistenceError reports a failed batch insert. Saved is the number of
// rows of the other batch that were already committed; they stay stored.
type PersistenceError struct {
	Batch string
	Saved int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("insert %s students: %v", e.Batch, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Upload is one submitted CSV file.
type Upload struct {
	FileName string
	Data     []byte
	Actor    string
}

// Importer runs the import pipeline against a store.
type Importer struct {
	store      storage.Storage
	effects    *effects.Runner
	log        *slog.Logger
	maxInvalid int
}

// Option customizes an Importer.
type Option func(*Importer)

// WithMaxReportedInvalid sets how many invalid rows the message quotes.
func WithMaxReportedInvalid(n int) Option {
	return func(im *Importer) { im.maxInvalid = n }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(im *Importer) { im.log = log }
}

// New builds an Importer. fx may be nil to skip the side effects.
func New(store storage.Storage, fx *effects.Runner, opts ...Option) *Importer {
	im := &Importer{
		store:      store,
		effects:    fx,
		log:        slog.Default(),
		maxInvalid: DefaultMaxReportedInvalid,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Parse runs the pure stages on raw file bytes: decode, header, per-row
// normalization. Blank lines are skipped but still counted for line
// numbers.
//
// Line numbers are 1-based and count the header, so the first data row
// is line 2. That is the number a spreadsheet program shows the admin.
func Parse(raw []byte) (valid []types.Student, invalid []types.InvalidRow, err error) {
	lines := SplitLines(DecodeText(raw))
	if len(lines) < 2 {
		return nil, nil, ErrNoData
	}

	cols := ParseHeader(lines[0])
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		student, bad := NormalizeRow(line, i+2, cols)
		if bad != nil {
			invalid = append(invalid, *bad)
			continue
		}
		valid = append(valid, student)
	}
	return valid, invalid, nil
}

// Import processes one uploaded file end to end.
//
// The returned result always carries the message to show the admin.
// err is ErrNoData for an empty upload, a *PersistenceError when a batch
// insert failed, or a storage error from the existence lookup.
// Invalid rows never produce an error; they are listed in the message.
func (im *Importer) Import(ctx context.Context, up Upload) (types.ImportResult, error) {
	log := im.log.With(slog.String("file", up.FileName))

	valid, invalid, err := Parse(up.Data)
	if err != nil {
		return types.ImportResult{Success: false, Message: "The file has no data rows."}, err
	}

	deduped := Dedupe(valid)
	sum := Summary{
		Duplicates: len(valid) - len(deduped),
		Invalid:    invalid,
	}

	domestic, foreign := Partition(deduped)

	newDomestic, err := im.filterNew(ctx, domestic, im.store.ExistingCPFs)
	if err != nil {
		log.Error("checking existing CPFs", slog.String("error", err.Error()))
		return types.ImportResult{Success: false, Message: "Could not check which students are already registered."}, err
	}
	newForeign, err := im.filterNew(ctx, foreign, im.store.ExistingEmails)
	if err != nil {
		log.Error("checking existing emails", slog.String("error", err.Error()))
		return types.ImportResult{Success: false, Message: "Could not check which students are already registered."}, err
	}
	sum.Existing = len(deduped) - len(newDomestic) - len(newForeign)

	// WHY two batches instead of one transaction?
	//
	//	Domestic and foreign rows are uniqued by different indexes and the
	//	admin fixes each group differently (CPF column vs email column).
	//	A failure in the foreign batch leaves the domestic rows committed,
	//	and the message says how many were saved so the upload can be
	//	retried safely: existing rows are filtered out on the next run.
	if len(newDomestic) > 0 {
		if err := im.store.InsertStudents(ctx, newDomestic); err != nil {
			perr := &PersistenceError{Batch: BatchDomestic, Err: err}
			log.Error("inserting domestic students", slog.String("error", err.Error()))
			return types.ImportResult{Success: false, Message: "Failed to save students with CPF."}, perr
		}
	}
	if len(newForeign) > 0 {
		if err := im.store.InsertStudents(ctx, newForeign); err != nil {
			perr := &PersistenceError{Batch: BatchForeign, Saved: len(newDomestic), Err: err}
			log.Error("inserting foreign students",
				slog.Int("domestic_saved", len(newDomestic)),
				slog.String("error", err.Error()))
			msg := "Failed to save foreign students."
			if len(newDomestic) > 0 {
				msg += fmt.Sprintf(" %d student(s) with CPF were saved.", len(newDomestic))
			}
			return types.ImportResult{Success: false, Message: msg}, perr
		}
	}

	sum.Imported = len(newDomestic) + len(newForeign)
	sum.Foreign = len(newForeign)

	log.Info("student base imported",
		slog.Int("imported", sum.Imported),
		slog.Int("foreign", sum.Foreign),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("existing", sum.Existing),
		slog.Int("invalid", len(sum.Invalid)))

	im.effects.After(ctx, types.ActionUploadCSV, up.Actor, sum.Details(up.FileName))

	return types.ImportResult{Success: true, Message: sum.Message(im.maxInvalid)}, nil
}

// filterNew drops the students whose identifier the store already has.
// The lookup is restricted to this batch's identifiers.
func (im *Importer) filterNew(
	ctx context.Context,
	students []types.Student,
	lookup func(context.Context, []string) (map[string]struct{}, error),
) ([]types.Student, error) {
	if len(students) == 0 {
		return nil, nil
	}
	existing, err := lookup(ctx, identifiers(students))
	if err != nil {
		return nil, err
	}
	return FilterExisting(students, existing), nil
}
