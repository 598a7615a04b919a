package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/student-base/internal/types"
)

func TestNormalizeCPF(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123.456.789-01", "12345678901"},
		{"12345678901", "12345678901"},
		{"1234567890123", "34567890123"},
		{"9912345678901", "12345678901"},
		{"123", "00000000123"},
		{" 1 2 3 / 4 ", "00000001234"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCPF(tt.in))
		})
	}
}

func TestNormalizeCPFKeepsLastElevenDigits(t *testing.T) {
	for _, extra := range []string{"1", "98", "555", "0000"} {
		in := extra + "12345678901"
		got := NormalizeCPF(in)
		require.Len(t, got, CPFLength)
		assert.Equal(t, in[len(in)-CPFLength:], got)
	}
}

func TestNormalizeCPFLeftPads(t *testing.T) {
	for n := 1; n < CPFLength; n++ {
		in := strings.Repeat("7", n)
		got := NormalizeCPF(in)
		require.Len(t, got, CPFLength)
		assert.True(t, strings.HasSuffix(got, in))
		assert.Equal(t, strings.Repeat("0", CPFLength-n), got[:CPFLength-n])
	}
}

func TestIsScientificNotation(t *testing.T) {
	assert.True(t, IsScientificNotation("5,07629E+13"))
	assert.True(t, IsScientificNotation("5.07629e13"))
	assert.True(t, IsScientificNotation(" 1E+10 "))
	assert.False(t, IsScientificNotation("123.456.789-01"))
	assert.False(t, IsScientificNotation("12345678901"))
	assert.False(t, IsScientificNotation(""))
	assert.False(t, IsScientificNotation("E+13"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("maria@x.com"))
	assert.True(t, IsValidEmail("a.b+c@sub.domain.org"))
	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail("a@b"))
	assert.False(t, IsValidEmail("a b@c.com"))
	assert.False(t, IsValidEmail("@c.com"))
}

var defaultCols = ColumnMap{Delimiter: ',', Name: 0, CPF: 1, Email: 2}

func TestNormalizeRowDomestic(t *testing.T) {
	s, bad := NormalizeRow("Maria Silva,12345678901,maria@x.com", 2, defaultCols)
	require.Nil(t, bad)
	assert.Equal(t, types.Student{
		Name:      "Maria Silva",
		CPF:       types.Ptr("12345678901"),
		Email:     types.Ptr("maria@x.com"),
		IsForeign: false,
	}, s)
}

func TestNormalizeRowRemappedColumns(t *testing.T) {
	cols := ParseHeader("Comprador(a);Email;Documento")
	s, bad := NormalizeRow("Ana Souza;ana@x.com;98765432100", 2, cols)
	require.Nil(t, bad)
	assert.Equal(t, "Ana Souza", s.Name)
	assert.Equal(t, "98765432100", types.Deref(s.CPF))
	assert.Equal(t, "ana@x.com", types.Deref(s.Email))
	assert.False(t, s.IsForeign)
}

func TestNormalizeRowForeign(t *testing.T) {
	s, bad := NormalizeRow("John Smith,, John@Example.COM ", 3, defaultCols)
	require.Nil(t, bad)
	assert.True(t, s.IsForeign)
	assert.Nil(t, s.CPF)
	assert.Equal(t, "john@example.com", types.Deref(s.Email))
}

func TestNormalizeRowWithCPFIsNeverForeign(t *testing.T) {
	s, bad := NormalizeRow("John Smith,123,john@example.com", 2, defaultCols)
	require.Nil(t, bad)
	assert.False(t, s.IsForeign)
	assert.Equal(t, "00000000123", types.Deref(s.CPF))
}

func TestNormalizeRowPerRowDelimiter(t *testing.T) {
	s, bad := NormalizeRow("Maria Silva;123.456.789-01;maria@x.com", 5, defaultCols)
	require.Nil(t, bad)
	assert.Equal(t, "12345678901", types.Deref(s.CPF))
}

func TestNormalizeRowDomesticWithoutEmail(t *testing.T) {
	s, bad := NormalizeRow("Maria Silva,12345678901", 2, defaultCols)
	require.Nil(t, bad)
	assert.Nil(t, s.Email)
}

func TestNormalizeRowInvalid(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"single column", "Maria Silva", "at least 2 columns"},
		{"empty name", " ,12345678901,maria@x.com", "empty name"},
		{"scientific notation", "Maria Silva;5,07629E+13;maria@x.com", "scientific notation"},
		{"quoted scientific notation", `Maria Silva,"5,07629E+13",maria@x.com`, "scientific notation"},
		{"bad foreign email", "Maria Silva,,not-an-email", "invalid email"},
		{"short foreign name", "Al,,al@x.com", "too short"},
		{"no identifiers", "Maria Silva,,", "missing CPF"},
		{"all zero cpf", "Maria Silva,000.000.000-00,", "all zeros"},
		{"zero after padding", "Maria Silva,0,", "all zeros"},
		{"short domestic name", "Jo,12345678901,", "too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bad := NormalizeRow(tt.line, 7, defaultCols)
			require.NotNil(t, bad)
			assert.Equal(t, 7, bad.Line)
			assert.Contains(t, bad.Reason, tt.reason)
		})
	}
}

func TestNormalizeRowScientificNotationGuidance(t *testing.T) {
	_, bad := NormalizeRow("Maria Silva;5,07629E+13;maria@x.com", 2, defaultCols)
	require.NotNil(t, bad)
	assert.Contains(t, bad.Reason, "save the file again as plain CSV")
	assert.Contains(t, bad.Reason, "spreadsheet")
}

func TestNormalizeRowQuotedCellKeepsDelimiter(t *testing.T) {
	s, bad := NormalizeRow(`Maria Silva,"123.456.789,01",maria@x.com`, 2, defaultCols)
	require.Nil(t, bad)
	assert.Equal(t, "12345678901", types.Deref(s.CPF))
	assert.Equal(t, "maria@x.com", types.Deref(s.Email))
	assert.False(t, s.IsForeign)
}

func TestNormalizeRowQuotedCells(t *testing.T) {
	s, bad := NormalizeRow(`"Silva, Maria", "12345678901","Maria@X.com"`, 2, defaultCols)
	require.Nil(t, bad)
	assert.Equal(t, "Silva, Maria", s.Name)
	assert.Equal(t, "12345678901", types.Deref(s.CPF))
	assert.Equal(t, "maria@x.com", types.Deref(s.Email))
}
