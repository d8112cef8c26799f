package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	require.Nil(t, Wrap(nil, CodeFetchFailed, "msg"))
}

func TestWrap_PreservesClassificationOfWrappedPlatformError(t *testing.T) {
	inner := New(CodeNetwork, "dns lookup failed")
	outer := Wrap(inner, CodeInternal, "fetch pipeline aborted")

	// CodeInternal defaults to permanent, but wrapping a retryable
	// PlatformError should keep it retryable.
	require.True(t, outer.Classification().IsRetryable())
}

func TestWrap_UsesDefaultClassificationForPlainError(t *testing.T) {
	outer := Wrap(stderrors.New("boom"), CodeTimeout, "git ls-remote timed out")
	require.True(t, outer.Classification().IsRetryable())
}

func TestWrapf(t *testing.T) {
	err := Wrapf(stderrors.New("exit 128"), CodeFetchFailed, "fetch %s failed", "origin")
	require.Equal(t, "fetch origin failed", err.Message())
}

func TestWrapWithContext(t *testing.T) {
	cause := stderrors.New("exit 1")
	ctx := map[string]interface{}{"mirror": "/cache/gitv4/abc"}
	err := WrapWithContext(cause, CodeCheckoutFailed, "checkout failed", ctx)

	require.Equal(t, "/cache/gitv4/abc", err.Context()["mirror"])

	ctx["mirror"] = "mutated"
	require.Equal(t, "/cache/gitv4/abc", err.Context()["mirror"], "must defensively copy the input map")
}

func TestWrapWithContext_Nil(t *testing.T) {
	require.Nil(t, WrapWithContext(nil, CodeFetchFailed, "msg", nil))
}
