package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NotFound("asset1", "The asset asset1 does not exist")
	assert.Equal(t, "The asset asset1 does not exist", err.Error())

	cause := errors.New("invalid character 'x'")
	corrupt := Corrupt("file_1", cause)
	assert.Equal(t, "the stored value for file_1 is corrupt: invalid character 'x'", corrupt.Error())
	assert.ErrorIs(t, corrupt, cause)
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		code  Code
	}{
		{"not found", NotFound("k", "m"), IsNotFound, CodeNotFound},
		{"already exists", AlreadyExists("k", "m"), IsAlreadyExists, CodeAlreadyExists},
		{"unauthorized", Unauthorized("k", "m"), IsUnauthorized, CodeUnauthorized},
		{"corrupt", Corrupt("k", errors.New("bad")), IsCorrupt, CodeCorrupt},
		{"invalid argument", InvalidArgument("expected %d args", 2), IsInvalidArgument, CodeInvalidArgument},
		{"unknown function", UnknownFunction("Nope"), IsUnknownFunction, CodeUnknownFunction},
		{"conflict", Conflict("k", 1, 2), IsConflict, CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.code, CodeOf(tt.err))

			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.True(t, tt.check(wrapped), "classifier must see through wrapping")
		})
	}
}

func TestClassifiersRejectOtherErrors(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(AlreadyExists("k", "m")))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestUnknownFunctionMessage(t *testing.T) {
	assert.Equal(t, `function "Nope" is not defined`, UnknownFunction("Nope").Error())
}

func TestConflictMessage(t *testing.T) {
	err := Conflict("asset1", 3, 4)
	assert.Equal(t, "read conflict on asset1: read version 3, current version 4", err.Error())
	assert.Equal(t, "asset1", err.Key)
}
