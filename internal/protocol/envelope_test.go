package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStateEnvelope(t *testing.T) {
	buf, err := AppendStateEnvelope(nil, "0x123")
	require.NoError(t, err)
	buf = append(buf, 1, 2, 3)

	env, err := ParseStateEnvelope(buf)
	require.NoError(t, err)

	assert.Equal(t, CommsResCRDTState, env.Kind)
	assert.Equal(t, []byte("0x123"), env.Address)
	assert.Equal(t, []byte{1, 2, 3}, env.Payload)
	assert.Equal(t, 7, env.PrefixLength())
}

func TestParseStateEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "empty", buf: nil},
		{name: "no address length", buf: []byte{3}},
		{name: "address truncated", buf: []byte{3, 10, 'a', 'b'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStateEnvelope(tt.buf)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestAppendStateEnvelope_AddressTooLong(t *testing.T) {
	_, err := AppendStateEnvelope(nil, strings.Repeat("a", MaxAddressLength+1))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	buf, err := AppendStateEnvelope(nil, strings.Repeat("a", MaxAddressLength))
	require.NoError(t, err)
	assert.Len(t, buf, 2+MaxAddressLength)
}

func TestCommsPrefixLength(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    int
	}{
		{name: "empty", payload: nil, want: 0},
		{name: "crdt", payload: []byte{byte(CommsCRDT), 1, 2}, want: 1},
		{name: "state request", payload: []byte{byte(CommsReqCRDTState)}, want: 1},
		{name: "state response", payload: []byte{byte(CommsResCRDTState), 3, 'a', 'b', 'c', 9}, want: 5},
		{name: "state response without address", payload: []byte{byte(CommsResCRDTState), 0}, want: 2},
		{name: "truncated state response", payload: []byte{byte(CommsResCRDTState), 9, 'a'}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommsPrefixLength(tt.payload))
		})
	}
}

func TestAppendBatch(t *testing.T) {
	buf, err := AppendBatch(nil, []Message{{Type: DeleteEntity, EntityID: 1}})
	require.NoError(t, err)

	assert.Equal(t, byte(CommsCRDT), buf[0])
	messages, err := DecodeAll(buf[1:])
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, int32(1), messages[0].EntityID)
}
