package fhe

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gtank/ristretto255"
)

// Encrypted values are exponential ElGamal over ristretto255 under the
// network key Y = x*G:
//
//	Enc(m; r) = (r*G, m*G + r*Y)
//
// so adding ciphertexts adds plaintexts. Decryption yields m*G and m is read
// back from a table of small multiples of G.

const (
	encodedBytes = 32

	// maxPlaintext bounds the table. It leaves headroom above euint8 for
	// unreduced sums; callers reduce to the type width.
	maxPlaintext = 1 << 12
)

// pair is one ciphertext (c1, c2).
type pair struct {
	c1, c2 ristretto255.Element
}

func scalarOf(m uint64) *ristretto255.Scalar {
	var b [encodedBytes]byte
	binary.LittleEndian.PutUint64(b[:8], m)
	s := ristretto255.NewScalar()
	// Any 64-bit value is below the group order, so this cannot fail.
	if _, err := s.SetCanonicalBytes(b[:]); err != nil {
		panic(err)
	}
	return s
}

func isZeroScalar(s *ristretto255.Scalar) bool {
	return s.Equal(ristretto255.NewScalar()) == 1
}

// scalarFromWide reduces 64 uniform bytes to a scalar and rejects zero.
func scalarFromWide(wide []byte) (*ristretto255.Scalar, error) {
	if len(wide) != 64 {
		return nil, fmt.Errorf("scalar: need 64 uniform bytes, got %d", len(wide))
	}
	s := ristretto255.NewScalar()
	s.FromUniformBytes(wide)
	if isZeroScalar(s) {
		return nil, fmt.Errorf("scalar: zero")
	}
	return s, nil
}

// decodeScalar accepts only the canonical non-zero encoding.
func decodeScalar(b []byte) (*ristretto255.Scalar, error) {
	if len(b) != encodedBytes {
		return nil, fmt.Errorf("scalar: need %d bytes, got %d", encodedBytes, len(b))
	}
	s := ristretto255.NewScalar()
	if _, err := s.SetCanonicalBytes(b); err != nil {
		return nil, fmt.Errorf("scalar: non-canonical encoding")
	}
	if isZeroScalar(s) {
		return nil, fmt.Errorf("scalar: zero")
	}
	return s, nil
}

// decodeElement accepts only canonical group encodings, so a stored
// ciphertext has exactly one byte form.
func decodeElement(b []byte) (*ristretto255.Element, error) {
	if len(b) != encodedBytes {
		return nil, fmt.Errorf("element: need %d bytes, got %d", encodedBytes, len(b))
	}
	e := ristretto255.NewElement()
	if _, err := e.SetCanonicalBytes(b); err != nil {
		return nil, fmt.Errorf("element: non-canonical encoding")
	}
	return e, nil
}

func baseMult(s *ristretto255.Scalar) *ristretto255.Element {
	return ristretto255.NewElement().ScalarBaseMult(s)
}

func encryptPair(y *ristretto255.Element, m uint64, r *ristretto255.Scalar) (pair, error) {
	if isZeroScalar(r) {
		// r = 0 leaves c2 = m*G in the clear.
		return pair{}, fmt.Errorf("encrypt: zero randomness")
	}
	var p pair
	p.c1.ScalarBaseMult(r)
	p.c2.ScalarMult(r, y)
	p.c2.Add(&p.c2, baseMult(scalarOf(m)))
	return p, nil
}

func (p pair) add(q pair) pair {
	var out pair
	out.c1.Add(&p.c1, &q.c1)
	out.c2.Add(&p.c2, &q.c2)
	return out
}

// rerandomize adds a fresh encryption of zero so the result cannot be linked
// to p.
func (p pair) rerandomize(y *ristretto255.Element, r *ristretto255.Scalar) (pair, error) {
	zero, err := encryptPair(y, 0, r)
	if err != nil {
		return pair{}, err
	}
	return p.add(zero), nil
}

func decryptPair(x *ristretto255.Scalar, p pair) (uint64, error) {
	var mG ristretto255.Element
	mG.ScalarMult(x, &p.c1)
	mG.Subtract(&p.c2, &mG)
	m, ok := plaintextTable().lookup(&mG)
	if !ok {
		return 0, fmt.Errorf("decrypt: plaintext outside [0, %d)", maxPlaintext)
	}
	return m, nil
}

func (p pair) encode() (c1, c2 []byte) {
	return p.c1.Bytes(), p.c2.Bytes()
}

func decodePair(c1, c2 []byte) (pair, error) {
	e1, err := decodeElement(c1)
	if err != nil {
		return pair{}, fmt.Errorf("c1: %w", err)
	}
	e2, err := decodeElement(c2)
	if err != nil {
		return pair{}, fmt.Errorf("c2: %w", err)
	}
	return pair{c1: *e1, c2: *e2}, nil
}

type multiplesOfG map[[encodedBytes]byte]uint64

var (
	tableOnce sync.Once
	table     multiplesOfG
)

func plaintextTable() multiplesOfG {
	tableOnce.Do(func() {
		table = make(multiplesOfG, maxPlaintext)
		acc := ristretto255.NewElement().Zero()
		g := ristretto255.NewElement().Base()
		for m := uint64(0); m < maxPlaintext; m++ {
			table[[encodedBytes]byte(acc.Bytes())] = m
			acc.Add(acc, g)
		}
	})
	return table
}

func (t multiplesOfG) lookup(e *ristretto255.Element) (uint64, bool) {
	m, ok := t[[encodedBytes]byte(e.Bytes())]
	return m, ok
}
