package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusConflict, "dup"), http.StatusConflict},
		{"wrapped not found", fmt.Errorf("loading: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"report not found", ErrReportNotFound, http.StatusNotFound},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"no content", ErrNoContent, http.StatusUnprocessableEntity},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", Newf(ErrDocumentNotFound, http.StatusNotFound, "document %s", "d1"))
	assert.True(t, Is(err, ErrDocumentNotFound))
	assert.Contains(t, err.Error(), "document d1")

	var appErr *AppError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
}
