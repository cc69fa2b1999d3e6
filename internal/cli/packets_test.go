package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/pipe"
	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/transport"
)

func joinPacket(t *testing.T, sceneID string) []byte {
	t.Helper()

	data, err := transport.Packet{Op: transport.OpJoin, SceneID: sceneID}.Marshal()
	require.NoError(t, err)
	return data
}

func messagePacket(t *testing.T, sceneID string, messages ...protocol.Message) []byte {
	t.Helper()

	payload, err := protocol.AppendBatch(nil, messages)
	require.NoError(t, err)

	data, err := transport.Packet{
		Op:      transport.OpMessage,
		MsgType: pipe.MsgTypeUint8Array,
		SceneID: sceneID,
		Payload: payload,
	}.Marshal()
	require.NoError(t, err)
	return data
}
