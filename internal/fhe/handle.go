package fhe

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const HandleBytes = 32

// Handle is an opaque reference to a stored ciphertext. The zero Handle is
// the "unset" sentinel.
type Handle [HandleBytes]byte

func ParseHandle(s string) (Handle, error) {
	ss := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(ss) != 2*HandleBytes {
		return Handle{}, fmt.Errorf("handle: expected %d hex chars, got %d", 2*HandleBytes, len(ss))
	}
	var h Handle
	if _, err := hex.Decode(h[:], []byte(ss)); err != nil {
		return Handle{}, fmt.Errorf("handle: %w", err)
	}
	return h, nil
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Handle) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("handle: %w", err)
	}
	parsed, err := ParseHandle(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Type is the plaintext type carried by a ciphertext.
type Type uint8

const (
	TypeBool  Type = 1
	TypeUint8 Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "ebool"
	case TypeUint8:
		return "euint8"
	default:
		return fmt.Sprintf("etype(%d)", uint8(t))
	}
}

// modulus reduces decrypted values to the type's width.
func (t Type) modulus() uint64 {
	if t == TypeBool {
		return 2
	}
	return 256
}

// Ciphertext is the stored form of an encrypted value.
type Ciphertext struct {
	Type Type   `cbor:"1,keyasint"`
	C1   []byte `cbor:"2,keyasint"`
	C2   []byte `cbor:"3,keyasint"`
}

func newCiphertext(t Type, p pair) *Ciphertext {
	c1, c2 := p.encode()
	return &Ciphertext{Type: t, C1: c1, C2: c2}
}

func (c *Ciphertext) pair() (pair, error) {
	p, err := decodePair(c.C1, c.C2)
	if err != nil {
		return pair{}, fmt.Errorf("ciphertext %w", err)
	}
	return p, nil
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

func (c *Ciphertext) Marshal() ([]byte, error) {
	return encMode.Marshal(c)
}

func UnmarshalCiphertext(b []byte) (*Ciphertext, error) {
	var c Ciphertext
	if err := cbor.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if c.Type != TypeBool && c.Type != TypeUint8 {
		return nil, fmt.Errorf("decode ciphertext: unknown type %d", c.Type)
	}
	return &c, nil
}
