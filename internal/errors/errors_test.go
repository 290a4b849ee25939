package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDerivesKindFromCode(t *testing.T) {
	cases := []struct {
		code string
		want Kind
	}{
		{CodeInvalidLimit, KindInvalidArgument},
		{CodeResourceNotFound, KindNotFound},
		{CodeNodeNotEmpty, KindConflict},
		{CodeEmbeddingUnavailable, KindUnavailable},
		{CodeInternal, KindInternal},
	}
	for _, tc := range cases {
		err := New(tc.code, "boom", nil)
		require.Equal(t, tc.want, err.Kind)
		require.Equal(t, tc.want.HTTPStatus(), err.Kind.HTTPStatus())
	}
}

func TestHTTPStatusTable(t *testing.T) {
	require.Equal(t, 400, KindInvalidArgument.HTTPStatus())
	require.Equal(t, 404, KindNotFound.HTTPStatus())
	require.Equal(t, 409, KindConflict.HTTPStatus())
	require.Equal(t, 503, KindUnavailable.HTTPStatus())
	require.Equal(t, 500, KindInternal.HTTPStatus())
}

func TestUnavailableIsRetryable(t *testing.T) {
	err := Unavailable(CodeRerankUnavailable, "rerank model not loaded", nil)
	require.True(t, IsRetryable(err))
	require.False(t, IsRetryable(Conflict(CodeSlugConflict, "dup slug")))
	require.False(t, IsRetryable(nil))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(CodeNodeNotFound, "node x not found", nil)
	b := New(CodeNodeNotFound, "node y not found", nil)
	require.True(t, errors.Is(a, b))

	c := New(CodeResourceNotFound, "resource not found", nil)
	require.False(t, errors.Is(a, c))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := Wrap(CodeEmbeddingUnavailable, cause)
	require.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestWithDetail(t *testing.T) {
	err := New(CodeNodeNotEmpty, "cannot delete", nil).WithDetail("node_id", "abc")
	require.Equal(t, "abc", err.Details["node_id"])
}

func TestKindOfAndCodeOfNonError(t *testing.T) {
	plain := errors.New("plain failure")
	require.Equal(t, KindInternal, KindOf(plain))
	require.Equal(t, "", CodeOf(plain))
	require.Equal(t, 500, HTTPStatus(plain))
}
