package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/transport"
)

func makePacket(session string, src, dst int) transport.Packet {
	header := transport.NewHeader(session, src, dst)
	msg := transport.Message{Type: "test", Payload: []byte(`{"A":1}`)}
	return transport.Packet{Header: &header, Msg: &msg}
}

func Test_Channel_Send_Recv(t *testing.T) {
	transp := NewTransport()

	s1, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s1.Close()

	s2, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s2.Close()

	require.NotEqual(t, s1.GetAddress(), s2.GetAddress())

	sent := makePacket("s", 0, 1)
	err = s1.Send(s2.GetAddress(), sent, time.Second)
	require.NoError(t, err)

	got, err := s2.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, sent.Header.SessionID, got.Header.SessionID)
	require.Equal(t, sent.Msg.Type, got.Msg.Type)
	require.Equal(t, sent.Msg.Payload, got.Msg.Payload)
}

func Test_Channel_Recv_Times_Out(t *testing.T) {
	transp := NewTransport()

	s, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv(50 * time.Millisecond)
	require.Error(t, err)
	require.True(t, transport.IsTimeout(err))
}

func Test_Channel_Send_To_Unknown_Address(t *testing.T) {
	transp := NewTransport()

	s, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()

	err = s.Send("127.0.0.1:9999", makePacket("s", 0, 1), 50*time.Millisecond)
	require.Error(t, err)
}

func Test_Channel_Packets_Are_Copied(t *testing.T) {
	transp := NewTransport()

	s1, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s1.Close()

	s2, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s2.Close()

	sent := makePacket("s", 0, 1)
	require.NoError(t, s1.Send(s2.GetAddress(), sent, time.Second))

	// mutating after send must not affect the delivered packet
	sent.Msg.Payload[0] = 'X'

	got, err := s2.Recv(time.Second)
	require.NoError(t, err)
	require.EqualValues(t, '{', got.Msg.Payload[0])
}
