package impl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/party"
)

// A zero-valued configuration must be filled with the documented
// defaults, in particular the 30-second handshake bound.
func Test_NewParty_Fills_Defaults(t *testing.T) {
	mpc := NewParty(party.Configuration{})
	n, ok := mpc.(*node)
	require.True(t, ok)

	require.Equal(t, VariantMascot, n.conf.ProtocolVariant)
	require.Equal(t, defaultModulus, n.conf.FieldModulus)
	require.Equal(t, 30*time.Second, n.conf.HandshakeTimeout)
	require.Equal(t, 10*time.Second, n.conf.OpTimeout)
	require.NotNil(t, n.conf.ResultLog)
}
