package fserrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "code only",
			err:  &Error{Code: ErrTimeout},
			want: "Timeout",
		},
		{
			name: "message and path",
			err:  &Error{Code: ErrService, Message: "not found", Path: "/a/b"},
			want: "ServiceError: not found: /a/b",
		},
		{
			name: "with cause",
			err:  &Error{Code: ErrInvalidFormat, Message: "bad header", Err: errors.New("illegal base64")},
			want: "InvalidFormat: bad header: illegal base64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(ErrTransport, "ignored", nil))
}

func TestIs_ThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrTransport, "list failed", cause)
	outer := fmt.Errorf("listing /data: %w", err)

	assert.True(t, Is(outer, ErrTransport))
	assert.False(t, Is(outer, ErrService))
	assert.ErrorIs(t, outer, cause)

	code, ok := CodeOf(outer)
	require.True(t, ok)
	assert.Equal(t, ErrTransport, code)
}

func TestCodeOf_Unclassified(t *testing.T) {
	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithPath_Copies(t *testing.T) {
	base := New(ErrTimeout, "rename timed out")
	withPath := base.WithPath("/src")

	assert.Empty(t, base.Path)
	assert.Equal(t, "/src", withPath.Path)
	assert.Equal(t, ErrTimeout, withPath.Code)
}
