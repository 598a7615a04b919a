package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAllLimit(t *testing.T) {
	b, err := ReadAllLimit(strings.NewReader("nome,cpf"), 8)
	require.NoError(t, err)
	assert.Equal(t, "nome,cpf", string(b))

	_, err = ReadAllLimit(strings.NewReader("nome,cpf,email"), 8)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestReadAllLimitBoundary(t *testing.T) {
	b, err := ReadAllLimit(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Len(t, b, 5)

	_, err = ReadAllLimit(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	b, err = ReadAllLimit(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, b)
}
