package importer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aanand-mishra/student-base/internal/types"
)

func TestSummaryMessage(t *testing.T) {
	t.Run("imported only", func(t *testing.T) {
		msg := Summary{Imported: 3}.Message(5)
		assert.Equal(t, "3 student(s) imported successfully.", msg)
	})

	t.Run("all parts", func(t *testing.T) {
		msg := Summary{
			Imported:   4,
			Foreign:    1,
			Duplicates: 2,
			Invalid:    []types.InvalidRow{{Line: 3, Reason: "missing CPF"}},
		}.Message(5)

		assert.Equal(t, strings.Join([]string{
			"4 student(s) imported successfully (1 foreign).",
			"2 duplicate row(s) in the file were ignored.",
			"1 invalid row(s) skipped:",
			"Line 3: missing CPF",
		}, "\n"), msg)
	})

	t.Run("invalid rows are capped", func(t *testing.T) {
		var invalid []types.InvalidRow
		for i := 0; i < 8; i++ {
			invalid = append(invalid, types.InvalidRow{Line: i + 2, Reason: "empty name"})
		}
		msg := Summary{Invalid: invalid}.Message(5)

		assert.Contains(t, msg, "8 invalid row(s) skipped:")
		assert.Contains(t, msg, "Line 6: empty name")
		assert.NotContains(t, msg, "Line 7:")
		assert.True(t, strings.HasSuffix(msg, "...and 3 more."))
	})

	t.Run("existing rows are not reported", func(t *testing.T) {
		msg := Summary{Existing: 10}.Message(5)
		assert.Equal(t, "0 student(s) imported successfully.", msg)
	})
}

func TestSummaryDetails(t *testing.T) {
	d := Summary{Imported: 2, Foreign: 1, Duplicates: 1, Existing: 3,
		Invalid: []types.InvalidRow{{}}}.Details("alunos.csv")
	assert.Equal(t, "alunos.csv", d["file_name"])
	assert.Equal(t, 2, d["imported"])
	assert.Equal(t, 1, d["invalid"])
	assert.Equal(t, fmt.Sprint(3), fmt.Sprint(d["existing"]))
}
