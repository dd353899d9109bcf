package tcp

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

func Test_TCP_Send_Recv(t *testing.T) {
	transp := NewTCP()

	s1, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s1.Close()

	s2, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s2.Close()

	sent := makePacket("s", 0, 1)
	err = s1.Send(s2.GetAddress(), sent, time.Second)
	require.NoError(t, err)

	got, err := s2.Recv(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, sent.Header.SessionID, got.Header.SessionID)
	require.Equal(t, sent.Msg.Type, got.Msg.Type)
	require.Equal(t, sent.Msg.Payload, got.Msg.Payload)
}

func Test_TCP_Reuses_Connection_Both_Ways(t *testing.T) {
	transp := NewTCP()

	s1, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s1.Close()

	s2, err := transp.CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s2.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, s1.Send(s2.GetAddress(), makePacket("s", 0, 1), time.Second))
		_, err = s2.Recv(2 * time.Second)
		require.NoError(t, err)

		require.NoError(t, s2.Send(s1.GetAddress(), makePacket("s", 1, 0), time.Second))
		_, err = s1.Recv(2 * time.Second)
		require.NoError(t, err)
	}
}

func Test_TCP_Recv_Times_Out(t *testing.T) {
	s, err := NewTCP().CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv(50 * time.Millisecond)
	require.Error(t, err)
	require.True(t, transport.IsTimeout(err))
}

func Test_TCP_Send_To_Dead_Peer(t *testing.T) {
	s, err := NewTCP().CreateSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer s.Close()

	// nothing listens there
	err = s.Send("127.0.0.1:1", makePacket("s", 0, 1), 200*time.Millisecond)
	require.Error(t, err)
}

func Test_TCP_Close_Is_Final(t *testing.T) {
	s, err := NewTCP().CreateSocket("127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.Error(t, s.Close())
}
