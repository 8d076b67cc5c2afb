package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const AddressBytes = 20

const programDomain = "cipherarena/program/v1"

// Address is a 20-byte account identifier rendered as lowercase 0x-hex.
type Address [AddressBytes]byte

// ZeroAddress is the "empty address" sentinel (e.g. an unjoined opponent seat).
var ZeroAddress Address

func Keccak256(chunks ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressBytes {
		return a, fmt.Errorf("address: expected %d bytes, got %d", AddressBytes, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func ParseAddress(s string) (Address, error) {
	ss := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(ss) != 2*AddressBytes {
		return Address{}, fmt.Errorf("address: expected %d hex chars, got %d", 2*AddressBytes, len(ss))
	}
	b, err := hex.DecodeString(ss)
	if err != nil {
		return Address{}, fmt.Errorf("address: %w", err)
	}
	return AddressFromBytes(b)
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressBytes)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short renders 0x1234…abcd for listings.
func (a Address) Short() string {
	if a.IsZero() {
		return "-"
	}
	s := a.String()
	return s[:6] + "…" + s[len(s)-4:]
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ProgramAddress is the fixed address of the ledger-resident arena program.
func ProgramAddress() Address {
	var a Address
	sum := Keccak256([]byte(programDomain))
	copy(a[:], sum[len(sum)-AddressBytes:])
	return a
}
