package kms

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/nacl/box"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/typeddata"
)

// QueryPath is the ABCI query path serving user decryption.
const QueryPath = "/kms/user_decrypt"

// MaxHandlesPerRequest bounds one decryption session.
const MaxHandlesPerRequest = 16

type HandlePair struct {
	Handle  []byte `cbor:"1,keyasint"`
	Program []byte `cbor:"2,keyasint"`
}

// UserDecryptRequest is the wire form of a user decryption request. The
// signature covers the typed UserDecryptRequestVerification message built
// from PublicKey, ContractAddresses, StartTimestamp and DurationDays.
type UserDecryptRequest struct {
	SessionID         string       `cbor:"1,keyasint"`
	HandlePairs       []HandlePair `cbor:"2,keyasint"`
	PublicKey         []byte       `cbor:"3,keyasint"`
	Signature         []byte       `cbor:"4,keyasint"`
	ContractAddresses [][]byte     `cbor:"5,keyasint"`
	UserAddress       []byte       `cbor:"6,keyasint"`
	StartTimestamp    uint64       `cbor:"7,keyasint"`
	DurationDays      uint64       `cbor:"8,keyasint"`
}

// Result carries one plaintext sealed to the request's ephemeral key.
type Result struct {
	Handle []byte `cbor:"1,keyasint"`
	Sealed []byte `cbor:"2,keyasint"`
}

type UserDecryptResponse struct {
	SessionID string   `cbor:"1,keyasint"`
	Results   []Result `cbor:"2,keyasint"`
}

// Message rebuilds the typed message the user signed.
func (r *UserDecryptRequest) Message() (typeddata.UserDecryptRequest, error) {
	m := typeddata.UserDecryptRequest{
		PublicKey:      r.PublicKey,
		StartTimestamp: r.StartTimestamp,
		DurationDays:   r.DurationDays,
	}
	for _, raw := range r.ContractAddresses {
		a, err := identity.AddressFromBytes(raw)
		if err != nil {
			return typeddata.UserDecryptRequest{}, err
		}
		m.ContractAddresses = append(m.ContractAddresses, a)
	}
	return m, nil
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(b []byte, v any) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("kms: decode: %w", err)
	}
	return nil
}

// Seal encrypts a plaintext value to an X25519 public key.
func Seal(value uint64, recipient *[32]byte, rand io.Reader) ([]byte, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], value)
	return box.SealAnonymous(nil, msg[:], recipient, rand)
}

// Open recovers a value sealed with Seal.
func Open(sealed []byte, pub, priv *[32]byte) (uint64, error) {
	msg, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	if !ok || len(msg) != 8 {
		return 0, fmt.Errorf("kms: cannot open sealed result")
	}
	return binary.BigEndian.Uint64(msg), nil
}

func handleFromBytes(b []byte) (fhe.Handle, error) {
	var h fhe.Handle
	if len(b) != fhe.HandleBytes {
		return h, fmt.Errorf("handle: expected %d bytes, got %d", fhe.HandleBytes, len(b))
	}
	copy(h[:], b)
	return h, nil
}
