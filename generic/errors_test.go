package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/labor-engine/generic"
)

func TestErrorCodes(t *testing.T) {
	cause := errors.New("disk on fire")

	tests := []struct {
		name     string
		err      error
		code     string
		message  string
		notFound bool
		client   bool
	}{
		{
			name:    "validation",
			err:     generic.Invalid("calculation.validate", "invalid period", map[string]string{"period": "must be YYYY-MM"}),
			code:    generic.CodeValidation,
			message: "invalid period",
			client:  true,
		},
		{
			name:     "not found",
			err:      generic.NotFound(generic.ErrEmployeeNotFound, "employee.get", "employee not found"),
			code:     generic.CodeNotFound,
			message:  "employee not found",
			notFound: true,
		},
		{
			name:    "internal hides cause",
			err:     generic.Internal(cause, "calculation.create"),
			code:    generic.CodeInternal,
			message: "An internal error occurred. Please try again later.",
		},
		{
			name:     "bare sentinel",
			err:      fmt.Errorf("lookup: %w", generic.ErrRecordNotFound),
			code:     generic.CodeInternal,
			message:  "An internal error occurred. Please try again later.",
			notFound: true,
		},
		{
			name:    "wrapped date sentinel",
			err:     fmt.Errorf("parse: %w", generic.ErrInvalidDate),
			code:    generic.CodeInternal,
			message: "An internal error occurred. Please try again later.",
			client:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, generic.ErrorCode(tt.err))
			assert.Equal(t, tt.message, generic.ErrorMessage(tt.err))
			assert.Equal(t, tt.notFound, generic.IsNotFound(tt.err))
			assert.Equal(t, tt.client, generic.IsClientError(tt.err))
		})
	}
}

func TestError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := generic.Internal(cause, "store.ping")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store.ping: internal error: connection refused", err.Error())
	assert.Nil(t, generic.Internal(nil, "noop"))
}

func TestErrorFields(t *testing.T) {
	err := generic.InvalidErr(generic.ErrInvalidSpan, "employee.parse", "termination")

	assert.Equal(t, map[string]string{"termination": generic.ErrInvalidSpan.Error()}, generic.ErrorFields(err))
	assert.ErrorIs(t, err, generic.ErrInvalidSpan)
	assert.Nil(t, generic.ErrorFields(errors.New("plain")))
	assert.Equal(t, "", generic.ErrorCode(nil))
}
