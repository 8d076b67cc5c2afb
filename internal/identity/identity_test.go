package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignHash_RecoversSignerAddress(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	digest := Keccak256([]byte("hello"))
	sig, err := k.SignHash(digest)
	require.NoError(t, err)
	require.Len(t, sig, SignatureBytes)

	got, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	require.Equal(t, k.Address(), got)

	other := Keccak256([]byte("bye"))
	got2, err := RecoverAddress(other, sig)
	if err == nil {
		require.NotEqual(t, k.Address(), got2)
	}
}

func TestSignHash_RejectsWrongDigestLength(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	_, err = k.SignHash([]byte("short"))
	require.Error(t, err)
}

func TestParseAddress_RoundTripAndErrors(t *testing.T) {
	a := ProgramAddress()
	require.False(t, a.IsZero())

	parsed, err := ParseAddress(a.String())
	require.NoError(t, err)
	require.Equal(t, a, parsed)

	upper, err := ParseAddress("0X" + a.String()[2:])
	require.NoError(t, err)
	require.Equal(t, a, upper)

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("0xzz" + a.String()[4:])
	require.Error(t, err)
}

func TestSaveLoadKey(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "alice.json")

	require.NoError(t, SaveKey(path, k))
	loaded, err := LoadKey(path)
	require.NoError(t, err)
	require.Equal(t, k.Address(), loaded.Address())
	require.Equal(t, k.Bytes(), loaded.Bytes())
}
