// Package upload reads uploaded files with a size cap.
package upload

import (
	"errors"
	"io"
)

// ErrTooLarge is returned when the upload exceeds the configured limit.
var ErrTooLarge = errors.New("file too large")

// ReadAllLimit reads r fully, failing with ErrTooLarge past limit bytes.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, ErrTooLarge
	}
	return b, nil
}
