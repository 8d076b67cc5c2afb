package fhe

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gtank/ristretto255"
)

// NetworkKey is the coprocessor keypair. Every replica of the ledger program
// and the decryption service must load the same key.
type NetworkKey struct {
	secret *ristretto255.Scalar
	public *ristretto255.Element
}

func GenerateNetworkKey() (*NetworkKey, error) {
	var wide [64]byte
	if _, err := rand.Read(wide[:]); err != nil {
		return nil, fmt.Errorf("network key: read random: %w", err)
	}
	x, err := scalarFromWide(wide[:])
	if err != nil {
		return nil, fmt.Errorf("network key: %w", err)
	}
	return &NetworkKey{secret: x, public: baseMult(x)}, nil
}

// PublicKey is the canonical encoding of Y = x*G.
func (k *NetworkKey) PublicKey() []byte {
	return k.public.Bytes()
}

// Decrypt returns the plaintext of ct, reduced to the ciphertext's type width.
func (k *NetworkKey) Decrypt(ct *Ciphertext) (uint64, error) {
	if ct == nil {
		return 0, ErrUnknownHandle
	}
	p, err := ct.pair()
	if err != nil {
		return 0, ErrDecryption.Wrap(err.Error())
	}
	m, err := decryptPair(k.secret, p)
	if err != nil {
		return 0, ErrDecryption.Wrap(err.Error())
	}
	return m % ct.Type.modulus(), nil
}

func (k *NetworkKey) encrypt(t Type, m uint64, r *ristretto255.Scalar) (*Ciphertext, error) {
	p, err := encryptPair(k.public, m, r)
	if err != nil {
		return nil, err
	}
	return newCiphertext(t, p), nil
}

type networkKeyFile struct {
	Secret string `json:"secret"`
	Public string `json:"public"`
}

func SaveNetworkKey(path string, k *NetworkKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir key dir: %w", err)
	}
	b, err := json.MarshalIndent(networkKeyFile{
		Secret: hex.EncodeToString(k.secret.Bytes()),
		Public: hex.EncodeToString(k.PublicKey()),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode network key: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write network key: %w", err)
	}
	return nil
}

func LoadNetworkKey(path string) (*NetworkKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network key: %w", err)
	}
	var f networkKeyFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode network key: %w", err)
	}
	raw, err := hex.DecodeString(f.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode network key secret: %w", err)
	}
	x, err := decodeScalar(raw)
	if err != nil {
		return nil, fmt.Errorf("network key: %w", err)
	}
	k := &NetworkKey{secret: x, public: baseMult(x)}
	if f.Public != "" && f.Public != hex.EncodeToString(k.PublicKey()) {
		return nil, fmt.Errorf("network key: public key does not match secret")
	}
	return k, nil
}
