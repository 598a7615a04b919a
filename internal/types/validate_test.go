package types

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedTags(t *testing.T, err error) []string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
	tags := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		tags = append(tags, fe.Tag())
	}
	return tags
}

func TestValidateStudent(t *testing.T) {
	t.Run("domestic with cpf", func(t *testing.T) {
		s := Student{Name: "Maria Silva", CPF: Ptr("12345678901"), Email: Ptr("maria@x.com")}
		assert.NoError(t, ValidateStudent(s))
	})

	t.Run("domestic without email", func(t *testing.T) {
		s := Student{Name: "Maria Silva", CPF: Ptr("12345678901")}
		assert.NoError(t, ValidateStudent(s))
	})

	t.Run("foreign with email", func(t *testing.T) {
		s := Student{Name: "John Doe", Email: Ptr("john@x.com"), IsForeign: true}
		assert.NoError(t, ValidateStudent(s))
	})

	t.Run("domestic missing cpf", func(t *testing.T) {
		s := Student{Name: "Maria Silva", Email: Ptr("maria@x.com")}
		assert.Contains(t, failedTags(t, ValidateStudent(s)), TagRequiredDomestic)
	})

	t.Run("all zero cpf", func(t *testing.T) {
		s := Student{Name: "Maria Silva", CPF: Ptr("00000000000")}
		assert.Contains(t, failedTags(t, ValidateStudent(s)), TagNonZeroCPF)
	})

	t.Run("short cpf", func(t *testing.T) {
		s := Student{Name: "Maria Silva", CPF: Ptr("123")}
		assert.Contains(t, failedTags(t, ValidateStudent(s)), "len")
	})

	t.Run("foreign missing email", func(t *testing.T) {
		s := Student{Name: "John Doe", IsForeign: true}
		assert.Contains(t, failedTags(t, ValidateStudent(s)), TagRequiredForeign)
	})

	t.Run("foreign with cpf", func(t *testing.T) {
		s := Student{Name: "John Doe", CPF: Ptr("12345678901"), Email: Ptr("john@x.com"), IsForeign: true}
		assert.Contains(t, failedTags(t, ValidateStudent(s)), TagForeignNoCPF)
	})

	t.Run("short name", func(t *testing.T) {
		s := Student{Name: "Al", CPF: Ptr("12345678901")}
		assert.Contains(t, failedTags(t, ValidateStudent(s)), "min")
	})
}

func TestStudentFilterNormalize(t *testing.T) {
	f := StudentFilter{Page: 0, PageSize: 500}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, 0, f.Offset())

	f = StudentFilter{Page: 3}.Normalize()
	assert.Equal(t, DefaultPageSize, f.PageSize)
	assert.Equal(t, 40, f.Offset())
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "12345678901", Student{CPF: Ptr("12345678901"), Email: Ptr("a@b.co")}.Identifier())
	assert.Equal(t, "a@b.co", Student{CPF: nil, Email: Ptr("a@b.co"), IsForeign: true}.Identifier())
	assert.Equal(t, "", Student{}.Identifier())
}
