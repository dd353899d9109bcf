package party

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
)

func Test_Registry_Dispatch(t *testing.T) {
	r := NewRegistry()

	var got *types.HeartbeatMessage
	r.RegisterMessageCallback(types.HeartbeatMessage{}, func(m types.Message, pkt transport.Packet) error {
		got = m.(*types.HeartbeatMessage)
		return nil
	})

	tmsg, err := r.MarshalMessage(types.HeartbeatMessage{Timestamp: 42})
	require.NoError(t, err)
	require.Equal(t, (types.HeartbeatMessage{}).Name(), tmsg.Type)

	header := transport.NewHeader("s", 0, 1)
	err = r.ProcessPacket(transport.Packet{Header: &header, Msg: &tmsg})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.EqualValues(t, 42, got.Timestamp)
}

func Test_Registry_Unknown_Type(t *testing.T) {
	r := NewRegistry()

	header := transport.NewHeader("s", 0, 1)
	msg := transport.Message{Type: "nope", Payload: []byte("{}")}
	err := r.ProcessPacket(transport.Packet{Header: &header, Msg: &msg})
	require.Error(t, err)
	require.Equal(t, types.ProtocolError, types.CodeOf(err))
}

func Test_Registry_Malformed_Payload(t *testing.T) {
	r := NewRegistry()
	r.RegisterMessageCallback(types.HeartbeatMessage{}, func(types.Message, transport.Packet) error {
		t.Fatal("callback must not run on malformed payload")
		return nil
	})

	header := transport.NewHeader("s", 0, 1)
	msg := transport.Message{Type: (types.HeartbeatMessage{}).Name(), Payload: []byte("{")}
	err := r.ProcessPacket(transport.Packet{Header: &header, Msg: &msg})
	require.Error(t, err)
}
