package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func Test_Error_Code_Extraction(t *testing.T) {
	err := NewError(Timeout, "barrier expired")
	require.Equal(t, Timeout, CodeOf(err))

	wrapped := WrapError(NetworkError, err, "send failed")
	require.Equal(t, NetworkError, CodeOf(wrapped))

	// anything without a code is treated as a protocol error
	require.Equal(t, ProtocolError, CodeOf(xerrors.New("plain")))
	require.Equal(t, ProtocolError, CodeOf(nil))
}

func Test_Error_Unwrap_Chain(t *testing.T) {
	cause := xerrors.New("connection reset")
	err := WrapError(NetworkError, cause, "party 2 unreachable")

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "party 2 unreachable")
	require.Contains(t, err.Error(), "connection reset")
}

func Test_Error_Is_Matches_On_Code(t *testing.T) {
	err := NewError(InvalidShare, "mac check failed")

	require.True(t, errors.Is(err, &MPCError{Code: InvalidShare}))
	require.False(t, errors.Is(err, &MPCError{Code: ProtocolError}))
}
