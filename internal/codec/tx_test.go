package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherarena/internal/identity"
)

func TestDecodeTxEnvelope_MissingType(t *testing.T) {
	b, err := json.Marshal(map[string]any{"value": map[string]any{"x": 1}})
	require.NoError(t, err)
	_, err = DecodeTxEnvelope(b)
	require.Error(t, err)

	_, err = DecodeTxEnvelope([]byte("{"))
	require.Error(t, err)
}

func TestNewSignedTx_Authenticates(t *testing.T) {
	k, err := identity.GenerateKey()
	require.NoError(t, err)

	b, err := NewSignedTx(k, TypePlayCard, PlayCardTx{GameID: 3, CardIndex: 2}, 7)
	require.NoError(t, err)
	env, err := DecodeTxEnvelope(b)
	require.NoError(t, err)

	signer, nonce, err := env.Authenticate()
	require.NoError(t, err)
	require.Equal(t, k.Address(), signer)
	require.Equal(t, uint64(7), nonce)

	var msg PlayCardTx
	require.NoError(t, json.Unmarshal(env.Value, &msg))
	require.Equal(t, uint8(2), msg.CardIndex)
}

func TestAuthenticate_RejectsTampering(t *testing.T) {
	k, err := identity.GenerateKey()
	require.NoError(t, err)
	other, err := identity.GenerateKey()
	require.NoError(t, err)

	b, err := NewSignedTx(k, TypeJoinGame, JoinGameTx{GameID: 1}, 1)
	require.NoError(t, err)

	cases := map[string]func(env *TxEnvelope){
		"value":   func(env *TxEnvelope) { env.Value = json.RawMessage(`{"gameId":2}`) },
		"nonce":   func(env *TxEnvelope) { env.Nonce = "2" },
		"type":    func(env *TxEnvelope) { env.Type = TypeStartGame },
		"signer":  func(env *TxEnvelope) { env.Signer = other.Address().String() },
		"sig len": func(env *TxEnvelope) { env.Sig = env.Sig[:64] },
		"no nonce": func(env *TxEnvelope) {
			env.Nonce = ""
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env, err := DecodeTxEnvelope(b)
			require.NoError(t, err)
			mutate(&env)
			_, _, err = env.Authenticate()
			require.Error(t, err)
		})
	}
}
