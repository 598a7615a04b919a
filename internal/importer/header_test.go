package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', DetectDelimiter("nome;cpf;email"))
	assert.Equal(t, ',', DetectDelimiter("nome,cpf,email"))
	assert.Equal(t, ';', DetectDelimiter("a,b;c"))
	assert.Equal(t, ',', DetectDelimiter("single"))
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   ColumnMap
	}{
		{
			name:   "default order",
			header: "nome,cpf,email",
			want:   ColumnMap{Delimiter: ',', Name: 0, CPF: 1, Email: 2},
		},
		{
			name:   "commerce export with email before document",
			header: "Comprador(a);Email;Documento",
			want:   ColumnMap{Delimiter: ';', Name: 0, CPF: 2, Email: 1},
		},
		{
			name:   "hyphenated e-mail and aluno",
			header: "CPF;E-mail;Aluno",
			want:   ColumnMap{Delimiter: ';', Name: 2, CPF: 0, Email: 1},
		},
		{
			name:   "quoted cells",
			header: `"Nome Completo","CPF","E-mail"`,
			want:   ColumnMap{Delimiter: ',', Name: 0, CPF: 1, Email: 2},
		},
		{
			name:   "quoted cell containing the delimiter",
			header: `"Nome, completo",CPF,E-mail`,
			want:   ColumnMap{Delimiter: ',', Name: 0, CPF: 1, Email: 2},
		},
		{
			name:   "unrecognised header falls back to defaults",
			header: "col1,col2,col3",
			want:   DefaultColumns,
		},
		{
			name:   "each column falls back independently",
			header: "x;y;email;nome",
			want:   ColumnMap{Delimiter: ';', Name: 3, CPF: DefaultColumns.CPF, Email: 2},
		},
		{
			name:   "first matching cell wins",
			header: "nome,nome social,cpf,doc,email",
			want:   ColumnMap{Delimiter: ',', Name: 0, CPF: 2, Email: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHeader(tt.header))
		})
	}
}

func TestDefaultColumns(t *testing.T) {
	assert.Equal(t, 0, DefaultColumns.Name)
	assert.Equal(t, 1, DefaultColumns.CPF)
	assert.Equal(t, 2, DefaultColumns.Email)
}

func TestSplitRow(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"comma", "a,b,c", []string{"a", "b", "c"}},
		{"semicolon", "a;b,c;d", []string{"a", "b,c", "d"}},
		{"quoted delimiter", `Maria,"5,07629E+13",m@x.com`, []string{"Maria", "5,07629E+13", "m@x.com"}},
		{"stray quote", `Ma"ria,1`, []string{`Ma"ria`, "1"}},
		{"ragged", "a", []string{"a"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitRow(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
