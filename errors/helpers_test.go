package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIs_TraversesChain(t *testing.T) {
	sentinel := stderrors.New("sentinel")
	wrapped := Wrap(sentinel, CodeFetchFailed, "fetch failed")

	require.True(t, Is(wrapped, sentinel))
}

func TestAs_FindsPlatformError(t *testing.T) {
	original := New(CodeBadRef, "no such ref")
	wrapped := Wrap(original, CodeInternal, "outer")

	var platformErr PlatformError
	require.True(t, As(wrapped, &platformErr))
	require.Equal(t, CodeBadRef, platformErr.Code())
}

func TestGetCode(t *testing.T) {
	require.Equal(t, CodeUnknown, GetCode(nil))
	require.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	require.Equal(t, CodeBadRef, GetCode(New(CodeBadRef, "msg")))
}

func TestGetClassification(t *testing.T) {
	require.Equal(t, ClassificationPermanent, GetClassification(nil))
	require.Equal(t, ClassificationRetryable, GetClassification(New(CodeNetwork, "msg")))
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(New(CodeTimeout, "msg")))
	require.False(t, IsRetryable(New(CodeBadRef, "msg")))
	require.False(t, IsRetryable(nil))
}
