package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	SignatureBytes = 65
	HashBytes      = 32
)

// PrivateKey is a long-term secp256k1 identity key.
type PrivateKey struct {
	k *secp256k1.PrivateKey
}

func GenerateKey() (*PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{k: k}, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key: expected 32 bytes, got %d", len(b))
	}
	k := secp256k1.PrivKeyFromBytes(b)
	if k.Key.IsZero() {
		return nil, fmt.Errorf("private key: zero scalar")
	}
	return &PrivateKey{k: k}, nil
}

func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return PrivateKeyFromBytes(b)
}

func (p *PrivateKey) Bytes() []byte {
	return p.k.Serialize()
}

func (p *PrivateKey) Address() Address {
	return addressFromPubKey(p.k.PubKey())
}

// SignHash returns a 65-byte recoverable signature (recovery code || R || S)
// over a 32-byte digest.
func (p *PrivateKey) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != HashBytes {
		return nil, fmt.Errorf("sign: expected %d-byte digest, got %d", HashBytes, len(hash))
	}
	return ecdsa.SignCompact(p.k, hash, false), nil
}

// RecoverAddress returns the address whose key produced sig over hash.
func RecoverAddress(hash, sig []byte) (Address, error) {
	if len(hash) != HashBytes {
		return Address{}, fmt.Errorf("recover: expected %d-byte digest, got %d", HashBytes, len(hash))
	}
	if len(sig) != SignatureBytes {
		return Address{}, fmt.Errorf("recover: expected %d-byte signature, got %d", SignatureBytes, len(sig))
	}
	pub, _, err := ecdsa.RecoverCompact(sig, hash)
	if err != nil {
		return Address{}, fmt.Errorf("recover: %w", err)
	}
	return addressFromPubKey(pub), nil
}

func addressFromPubKey(pub *secp256k1.PublicKey) Address {
	var a Address
	uncompressed := pub.SerializeUncompressed()
	sum := Keccak256(uncompressed[1:])
	copy(a[:], sum[len(sum)-AddressBytes:])
	return a
}

type keyFile struct {
	Address    Address `json:"address"`
	PrivateKey string  `json:"privateKey"`
}

// SaveKey writes the key as JSON with owner-only permissions.
func SaveKey(path string, p *PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir key dir: %w", err)
	}
	b, err := json.MarshalIndent(keyFile{
		Address:    p.Address(),
		PrivateKey: hex.EncodeToString(p.Bytes()),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

func LoadKey(path string) (*PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	p, err := PrivateKeyFromHex(kf.PrivateKey)
	if err != nil {
		return nil, err
	}
	if p.Address() != kf.Address {
		return nil, fmt.Errorf("key file address %s does not match key (%s)", kf.Address, p.Address())
	}
	return p, nil
}
