package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKVValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantOK  bool
		wantErr bool
	}{
		{name: "missing key from JS null", raw: "<null>"},
		{name: "missing key from JS undefined", raw: "<undefined>"},
		{name: "empty", raw: ""},
		{name: "empty JSON string", raw: `""`},
		{name: "token", raw: `"A1"`, want: "A1", wantOK: true},
		{name: "unencoded value", raw: "A1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := decodeKVValue(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKVValue_RoundTripsTokenThatLooksLikeNull(t *testing.T) {
	raw, err := encodeKVValue("<null>")
	require.NoError(t, err)

	got, ok, err := decodeKVValue(raw)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<null>", got)
}
