package fhe

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
	"github.com/zeebo/blake3"
)

const rngContext = "cipherarena 2024-01 fhe rng v1"

// Seed pins the randomness of one transaction. Replicas executing the same
// tx at the same position derive the same stream.
type Seed struct {
	Height  int64
	TxIndex uint32
	TxHash  []byte
}

func (s Seed) bytes() []byte {
	out := make([]byte, 12, 12+len(s.TxHash))
	binary.BigEndian.PutUint64(out[0:8], uint64(s.Height))
	binary.BigEndian.PutUint32(out[8:12], s.TxIndex)
	return append(out, s.TxHash...)
}

// Stream is a deterministic keyed blake3 XOF. The key is derived from the
// network secret, so players cannot predict it from public data.
type Stream struct {
	r io.Reader
}

func newStream(k *NetworkKey, seed Seed) (*Stream, error) {
	var key [32]byte
	blake3.DeriveKey(rngContext, k.secret.Bytes(), key[:])
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		return nil, fmt.Errorf("rng: %w", err)
	}
	_, _ = h.Write(seed.bytes())
	return &Stream{r: h.Digest()}, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	return io.ReadFull(s.r, p)
}

// scalar returns a uniformly random non-zero scalar.
func (s *Stream) scalar() (*ristretto255.Scalar, error) {
	var wide [64]byte
	for i := 0; i < 8; i++ {
		if _, err := s.Read(wide[:]); err != nil {
			return nil, fmt.Errorf("rng: %w", err)
		}
		if x, err := scalarFromWide(wide[:]); err == nil {
			return x, nil
		}
	}
	return nil, fmt.Errorf("rng: failed to sample non-zero scalar")
}

// Uniform returns a uniform value in [0, n) by rejection sampling, n in [1, 256].
func (s *Stream) Uniform(n int) (uint64, error) {
	if n <= 0 || n > 256 {
		return 0, fmt.Errorf("rng: bound %d out of range", n)
	}
	limit := 256 - 256%n
	var b [1]byte
	for i := 0; i < 1024; i++ {
		if _, err := s.Read(b[:]); err != nil {
			return 0, fmt.Errorf("rng: %w", err)
		}
		if int(b[0]) < limit {
			return uint64(int(b[0]) % n), nil
		}
	}
	return 0, fmt.Errorf("rng: rejection sampling did not converge")
}
