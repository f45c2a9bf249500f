package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{ErrInvalidStatus, http.StatusBadRequest, "InvalidStatus"},
		{ErrMissingReason, http.StatusBadRequest, "MissingReason"},
		{ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
		{ErrAlreadyDecided, http.StatusConflict, "AlreadyDecided"},
		{ErrNotFound, http.StatusNotFound, "NotFound"},
		{fmt.Errorf("update shipment: %w", ErrPersistence), http.StatusInternalServerError, "PersistenceError"},
		{errors.New("boom"), http.StatusInternalServerError, "PersistenceError"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.code, Code(tc.err), tc.err.Error())
	}
}

func TestWrappedErrorsKeepTheirClass(t *testing.T) {
	err := fmt.Errorf("decide SH1: %w", ErrAlreadyDecided)
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
	assert.Equal(t, "AlreadyDecided", Code(err))
}
