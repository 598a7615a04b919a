package importer

import (
	"fmt"
	"strings"

	"github.com/aanand-mishra/student-base/internal/types"
)

// DefaultMaxReportedInvalid is how many invalid rows are quoted in the
// import message before the rest are summarized by count.
const DefaultMaxReportedInvalid = 5

// Summary holds the counts of one import run.
type Summary struct {
	Imported   int
	Foreign    int
	Duplicates int
	Existing   int
	Invalid    []types.InvalidRow
}

// Details returns the counts in the shape stored with the audit entry.
func (s Summary) Details(fileName string) map[string]any {
	return map[string]any{
		"file_name":  fileName,
		"imported":   s.Imported,
		"foreign":    s.Foreign,
		"duplicates": s.Duplicates,
		"existing":   s.Existing,
		"invalid":    len(s.Invalid),
	}
}

// Message renders the user-facing, possibly multi-line, import summary.
// At most maxExamples invalid rows are listed.
//
// Rows skipped because they were already registered are not mentioned.
func (s Summary) Message(maxExamples int) string {
	if maxExamples < 0 {
		maxExamples = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d student(s) imported successfully", s.Imported)
	if s.Foreign > 0 {
		fmt.Fprintf(&b, " (%d foreign)", s.Foreign)
	}
	b.WriteString(".")

	if s.Duplicates > 0 {
		fmt.Fprintf(&b, "\n%d duplicate row(s) in the file were ignored.", s.Duplicates)
	}

	if n := len(s.Invalid); n > 0 {
		fmt.Fprintf(&b, "\n%d invalid row(s) skipped:", n)
		shown := min(n, maxExamples)
		for _, row := range s.Invalid[:shown] {
			fmt.Fprintf(&b, "\nLine %d: %s", row.Line, row.Reason)
		}
		if rest := n - shown; rest > 0 {
			fmt.Fprintf(&b, "\n...and %d more.", rest)
		}
	}

	return b.String()
}
