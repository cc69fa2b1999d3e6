package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
		errMsg  string
	}{
		{name: "wallet address", address: "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"},
		{name: "ens-like", address: "alice.eth"},
		{name: "with colon and dash", address: "peer:eu-1"},
		{name: "max length", address: strings.Repeat("a", MaxIDLen)},
		{name: "empty", address: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "too long", address: strings.Repeat("a", MaxIDLen+1), wantErr: true, errMsg: "must not exceed"},
		{name: "space", address: "alice bob", wantErr: true, errMsg: "can only contain"},
		{name: "slash", address: "a/b", wantErr: true, errMsg: "can only contain"},
		{name: "cyrillic", address: "алиса", wantErr: true, errMsg: "can only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Contains(t, err.Error(), "address")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSceneID(t *testing.T) {
	assert.NoError(t, ValidateSceneID("genesis-plaza_0.1"))

	err := ValidateSceneID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene id")
}
