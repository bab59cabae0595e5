package rest

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceErrorMessage(t *testing.T) {
	err := &ServiceError{StatusCode: 409, Code: CodePathAlreadyExists, Message: "exists", RequestID: "req-1"}
	assert.Equal(t, "store error 409 PathAlreadyExists: exists (request req-1)", err.Error())

	bare := NewServiceError(http.StatusPreconditionFailed, CodeConditionNotMet, "")
	assert.Equal(t, "store error 412 ConditionNotMet", bare.Error())
}

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("open: %w", PathNotFound("openFileForRead must be used with files and not directories"))

	se, ok := AsServiceError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.True(t, IsPathNotFound(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, HasCode(wrapped, CodeDirectoryNotEmpty))

	fsMissing := NewServiceError(http.StatusNotFound, CodeFilesystemNotFound, "")
	assert.True(t, IsNotFound(fsMissing))
	assert.False(t, IsPathNotFound(fsMissing))

	_, ok = AsServiceError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestResultHeaders(t *testing.T) {
	var nilResult *Result
	assert.Equal(t, "", nilResult.Header(HeaderETag))

	res := &Result{Headers: http.Header{}}
	res.Headers.Set(HeaderContinuation, "token")
	assert.Equal(t, "token", res.Continuation())
}
