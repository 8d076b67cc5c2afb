package codec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"cipherarena/internal/identity"
)

// TxEnvelope is the transaction container. CometBFT transactions are opaque
// bytes; ours are JSON.
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Nonce must strictly increase per signer. Sig is a 65-byte recoverable
	// secp256k1 signature over SignBytes; the recovered address must equal
	// Signer, which becomes the caller of the operation.
	Nonce  string `json:"nonce"`
	Signer string `json:"signer"`
	Sig    []byte `json:"sig"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

const txAuthDomain = "cipherarena/tx/v1"

// SignBytes is keccak256(DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 ||
// signer || 0x00 || keccak256(value)).
func SignBytes(typ string, value []byte, nonce string, signer string) []byte {
	out := make([]byte, 0, len(txAuthDomain)+len(typ)+len(nonce)+len(signer)+4+32)
	out = append(out, txAuthDomain...)
	out = append(out, 0)
	out = append(out, typ...)
	out = append(out, 0)
	out = append(out, nonce...)
	out = append(out, 0)
	out = append(out, signer...)
	out = append(out, 0)
	out = append(out, identity.Keccak256(value)...)
	return identity.Keccak256(out)
}

// NewSignedTx builds and signs an envelope for msg.
func NewSignedTx(key *identity.PrivateKey, typ string, msg any, nonce uint64) ([]byte, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", typ, err)
	}
	env := TxEnvelope{
		Type:   typ,
		Value:  value,
		Nonce:  strconv.FormatUint(nonce, 10),
		Signer: key.Address().String(),
	}
	sig, err := key.SignHash(SignBytes(env.Type, env.Value, env.Nonce, env.Signer))
	if err != nil {
		return nil, err
	}
	env.Sig = sig
	return json.Marshal(env)
}

// Authenticate checks the envelope signature and returns the signer and
// nonce. Nonce ordering is the caller's concern.
func (env TxEnvelope) Authenticate() (identity.Address, uint64, error) {
	if env.Nonce == "" {
		return identity.Address{}, 0, fmt.Errorf("missing tx.nonce")
	}
	if env.Signer == "" {
		return identity.Address{}, 0, fmt.Errorf("missing tx.signer")
	}
	if len(env.Sig) != identity.SignatureBytes {
		return identity.Address{}, 0, fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), identity.SignatureBytes)
	}
	nonce, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return identity.Address{}, 0, fmt.Errorf("invalid tx.nonce: %w", err)
	}
	signer, err := identity.ParseAddress(env.Signer)
	if err != nil {
		return identity.Address{}, 0, fmt.Errorf("invalid tx.signer: %w", err)
	}
	got, err := identity.RecoverAddress(SignBytes(env.Type, env.Value, env.Nonce, env.Signer), env.Sig)
	if err != nil {
		return identity.Address{}, 0, fmt.Errorf("invalid signature: %w", err)
	}
	if got != signer {
		return identity.Address{}, 0, fmt.Errorf("invalid signature: recovered %s, signer %s", got, signer)
	}
	return signer, nonce, nil
}

// ---- Arena ----

const (
	TypeCreateGame = "arena/create_game"
	TypeJoinGame   = "arena/join_game"
	TypeStartGame  = "arena/start_game"
	TypePlayCard   = "arena/play_card"
)

type CreateGameTx struct{}

type JoinGameTx struct {
	GameID uint64 `json:"gameId"`
}

type StartGameTx struct {
	GameID uint64 `json:"gameId"`
}

type PlayCardTx struct {
	GameID    uint64 `json:"gameId"`
	CardIndex uint8  `json:"cardIndex"`
}
