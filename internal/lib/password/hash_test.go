package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHash(t *testing.T) {
	tests := []struct {
		name string
		pin  string
	}{
		{name: "numeric pin", pin: "4711"},
		{name: "long pin", pin: "0123456789012345"},
		{name: "pin with special chars", pin: "p@ss!#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := GetHash(tt.pin)
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.pin, hash)
			assert.NoError(t, CompareHash(hash, tt.pin))
		})
	}
}

func TestCompareHash(t *testing.T) {
	correctHash, err := GetHash("4711")
	require.NoError(t, err)
	anotherHash, err := GetHash("0815")
	require.NoError(t, err)

	tests := []struct {
		name     string
		hash     string
		pin      string
		mismatch bool
		wantErr  bool
	}{
		{name: "matching pin", hash: correctHash, pin: "4711"},
		{name: "wrong pin", hash: correctHash, pin: "1234", mismatch: true, wantErr: true},
		{name: "other hash", hash: anotherHash, pin: "4711", mismatch: true, wantErr: true},
		{name: "empty pin", hash: correctHash, pin: "", mismatch: true, wantErr: true},
		{name: "corrupted hash", hash: "not-a-bcrypt-hash", pin: "4711", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareHash(tt.hash, tt.pin)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.mismatch, errors.Is(err, ErrMismatch))
		})
	}
}
