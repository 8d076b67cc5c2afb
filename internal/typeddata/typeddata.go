// Package typeddata builds domain-separated, schema-bound digests for the
// decryption authorization message, in the style of EIP-712: the signer
// commits to a named domain and to a typed struct, never to raw bytes.
package typeddata

import (
	"encoding/binary"
	"fmt"
	"strings"

	"cipherarena/internal/identity"
)

const (
	DomainName    = "Decryption"
	DomainVersion = "1"

	domainType = "EIP712Domain(string name,string version,string chainId,address verifyingContract)"

	// PrimaryType is the schema name shown to wallets and checked by the service.
	PrimaryType     = "UserDecryptRequestVerification"
	userDecryptType = PrimaryType + "(bytes publicKey,address[] contractAddresses,uint256 startTimestamp,uint256 durationDays)"
)

// Domain binds a signature to one chain and one verifying service.
type Domain struct {
	Name              string           `json:"name"`
	Version           string           `json:"version"`
	ChainID           string           `json:"chainId"`
	VerifyingContract identity.Address `json:"verifyingContract"`
}

// DecryptionDomain is the domain used by the decryption service of chainID.
func DecryptionDomain(chainID string) Domain {
	return Domain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           chainID,
		VerifyingContract: VerifierAddress(),
	}
}

// VerifierAddress identifies the decryption service in the signed domain.
func VerifierAddress() identity.Address {
	var a identity.Address
	sum := identity.Keccak256([]byte("cipherarena/kms/v1"))
	copy(a[:], sum[len(sum)-identity.AddressBytes:])
	return a
}

// UserDecryptRequest is the typed message a wallet signs to authorize a
// decryption session for an ephemeral public key.
type UserDecryptRequest struct {
	PublicKey         []byte             `json:"publicKey"`
	ContractAddresses []identity.Address `json:"contractAddresses"`
	StartTimestamp    uint64             `json:"startTimestamp"`
	DurationDays      uint64             `json:"durationDays"`
}

func (d Domain) Separator() []byte {
	return identity.Keccak256(
		identity.Keccak256([]byte(domainType)),
		identity.Keccak256([]byte(d.Name)),
		identity.Keccak256([]byte(d.Version)),
		identity.Keccak256([]byte(d.ChainID)),
		word(d.VerifyingContract[:]),
	)
}

func (m UserDecryptRequest) StructHash() []byte {
	addrs := make([]byte, 0, 32*len(m.ContractAddresses))
	for _, a := range m.ContractAddresses {
		addrs = append(addrs, word(a[:])...)
	}
	return identity.Keccak256(
		identity.Keccak256([]byte(userDecryptType)),
		identity.Keccak256(m.PublicKey),
		identity.Keccak256(addrs),
		uintWord(m.StartTimestamp),
		uintWord(m.DurationDays),
	)
}

// Digest is keccak256(0x19 0x01 || domainSeparator || structHash).
func Digest(d Domain, m UserDecryptRequest) []byte {
	return identity.Keccak256([]byte{0x19, 0x01}, d.Separator(), m.StructHash())
}

func (m UserDecryptRequest) Validate() error {
	if len(m.PublicKey) == 0 {
		return fmt.Errorf("typeddata: missing publicKey")
	}
	if len(m.ContractAddresses) == 0 {
		return fmt.Errorf("typeddata: missing contractAddresses")
	}
	for _, a := range m.ContractAddresses {
		if a.IsZero() {
			return fmt.Errorf("typeddata: zero contract address")
		}
	}
	return nil
}

func Sign(key *identity.PrivateKey, d Domain, m UserDecryptRequest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return key.SignHash(Digest(d, m))
}

// Recover returns the address that signed m under domain d.
func Recover(d Domain, m UserDecryptRequest, sig []byte) (identity.Address, error) {
	if err := m.Validate(); err != nil {
		return identity.Address{}, err
	}
	return identity.RecoverAddress(Digest(d, m), sig)
}

// Describe renders the message the way a wallet would present it.
func Describe(d Domain, m UserDecryptRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s v%s (chain %s, verifier %s)\n", d.Name, d.Version, d.ChainID, d.VerifyingContract)
	fmt.Fprintf(&sb, "%s:\n", PrimaryType)
	fmt.Fprintf(&sb, "  publicKey: 0x%x\n", m.PublicKey)
	for _, a := range m.ContractAddresses {
		fmt.Fprintf(&sb, "  contract: %s\n", a)
	}
	fmt.Fprintf(&sb, "  startTimestamp: %d\n  durationDays: %d\n", m.StartTimestamp, m.DurationDays)
	return sb.String()
}

func word(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func uintWord(x uint64) []byte {
	out := make([]byte, 32)
	binary.BigEndian.PutUint64(out[24:], x)
	return out
}
