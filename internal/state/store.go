package state

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
)

// Store is the typed repository over a key/value store. It is the single
// source of truth for games, hands, rounds, ciphertexts and grants; it also
// implements fhe.Store.
type Store struct {
	kv KVStore
}

var _ fhe.Store = (*Store)(nil)

func NewStore(kv KVStore) *Store {
	return &Store{kv: kv}
}

func (s *Store) NextGameID() (uint64, error) {
	bz := s.kv.Get(NextGameIDKey)
	if bz == nil {
		return 1, nil
	}
	if len(bz) != 8 {
		return 0, fmt.Errorf("invalid nextGameID encoding")
	}
	return binary.BigEndian.Uint64(bz), nil
}

func (s *Store) SetNextGameID(next uint64) error {
	s.kv.Set(NextGameIDKey, u64be(next))
	return nil
}

// GetGame returns nil, nil when the game does not exist.
func (s *Store) GetGame(id uint64) (*Game, error) {
	var g Game
	ok, err := s.getJSON(GameKey(id), &g)
	if err != nil || !ok {
		return nil, err
	}
	return &g, nil
}

func (s *Store) SetGame(g *Game) error {
	return s.setJSON(GameKey(g.ID), g)
}

// GetHand returns nil, nil when no hand was dealt.
func (s *Store) GetHand(gameID uint64, player identity.Address) (*Hand, error) {
	var h Hand
	ok, err := s.getJSON(HandKey(gameID, player), &h)
	if err != nil || !ok {
		return nil, err
	}
	return &h, nil
}

func (s *Store) SetHand(gameID uint64, player identity.Address, h *Hand) error {
	return s.setJSON(HandKey(gameID, player), h)
}

// GetRound returns an empty Round when nothing was recorded yet.
func (s *Store) GetRound(gameID uint64, round uint8) (*Round, error) {
	var r Round
	if _, err := s.getJSON(RoundKey(gameID, round), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SetRound(gameID uint64, round uint8, r *Round) error {
	return s.setJSON(RoundKey(gameID, round), r)
}

func (s *Store) GetCiphertext(h fhe.Handle) (*fhe.Ciphertext, error) {
	bz := s.kv.Get(CiphertextKey(h))
	if bz == nil {
		return nil, nil
	}
	return fhe.UnmarshalCiphertext(bz)
}

func (s *Store) SetCiphertext(h fhe.Handle, ct *fhe.Ciphertext) error {
	bz, err := ct.Marshal()
	if err != nil {
		return fmt.Errorf("encode ciphertext: %w", err)
	}
	s.kv.Set(CiphertextKey(h), bz)
	return nil
}

func (s *Store) SetAllowed(h fhe.Handle, addr identity.Address) error {
	s.kv.Set(ACLKey(h, addr), []byte{0x01})
	return nil
}

func (s *Store) IsAllowed(h fhe.Handle, addr identity.Address) (bool, error) {
	bz := s.kv.Get(ACLKey(h, addr))
	return len(bz) == 1 && bz[0] == 0x01, nil
}

// Nonce returns the last accepted tx nonce of addr (0 if none).
func (s *Store) Nonce(addr identity.Address) (uint64, error) {
	return s.getU64(NonceKey(addr))
}

func (s *Store) SetNonce(addr identity.Address, nonce uint64) error {
	s.kv.Set(NonceKey(addr), u64be(nonce))
	return nil
}

func (s *Store) Height() (int64, error) {
	h, err := s.getU64(HeightKey)
	return int64(h), err
}

func (s *Store) SetHeight(h int64) error {
	s.kv.Set(HeightKey, u64be(uint64(h)))
	return nil
}

func (s *Store) AppHash() ([]byte, error) {
	return s.kv.Get(AppHashKey), nil
}

func (s *Store) SetAppHash(h []byte) error {
	if len(h) == 0 {
		return fmt.Errorf("empty app hash")
	}
	s.kv.Set(AppHashKey, h)
	return nil
}

// ComputeAppHash chains the previous app hash with the sorted writes of a
// block. Writes must not include the height or app hash keys.
func ComputeAppHash(prev []byte, height int64, writes []KV) []byte {
	h := sha256.New()
	h.Write(prev)
	h.Write(u64be(uint64(height)))
	for _, kv := range writes {
		h.Write(u64be(uint64(len(kv.Key))))
		h.Write(kv.Key)
		if kv.Value == nil {
			h.Write([]byte{0})
			continue
		}
		h.Write([]byte{1})
		h.Write(u64be(uint64(len(kv.Value))))
		h.Write(kv.Value)
	}
	return h.Sum(nil)
}

func (s *Store) getJSON(key []byte, v any) (bool, error) {
	bz := s.kv.Get(key)
	if bz == nil {
		return false, nil
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return false, fmt.Errorf("decode %x: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key []byte, v any) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %x: %w", key, err)
	}
	s.kv.Set(key, bz)
	return nil
}

func (s *Store) getU64(key []byte) (uint64, error) {
	bz := s.kv.Get(key)
	if bz == nil {
		return 0, nil
	}
	if len(bz) != 8 {
		return 0, fmt.Errorf("invalid u64 encoding at %x", key)
	}
	return binary.BigEndian.Uint64(bz), nil
}

func u64be(x uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, x)
	return bz
}
