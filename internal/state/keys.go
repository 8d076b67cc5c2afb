package state

import (
	"encoding/binary"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
)

var (
	// NextGameIDKey stores the next game id as big-endian u64.
	NextGameIDKey = []byte{0x01}

	// GameKeyPrefix || u64be(gameID) -> Game (JSON).
	GameKeyPrefix = []byte{0x02}

	// HandKeyPrefix || u64be(gameID) || addr -> Hand (JSON).
	HandKeyPrefix = []byte{0x03}

	// RoundKeyPrefix || u64be(gameID) || u8(round) -> Round (JSON).
	RoundKeyPrefix = []byte{0x04}

	// CiphertextKeyPrefix || handle -> fhe.Ciphertext (CBOR).
	CiphertextKeyPrefix = []byte{0x05}

	// ACLKeyPrefix || handle || addr -> 0x01.
	ACLKeyPrefix = []byte{0x06}

	// NonceKeyPrefix || addr -> u64be(last accepted nonce).
	NonceKeyPrefix = []byte{0x07}

	HeightKey  = []byte{0x08, 0x01}
	AppHashKey = []byte{0x08, 0x02}
)

func GameKey(gameID uint64) []byte {
	bz := make([]byte, 1+8)
	bz[0] = GameKeyPrefix[0]
	binary.BigEndian.PutUint64(bz[1:], gameID)
	return bz
}

func HandKey(gameID uint64, player identity.Address) []byte {
	bz := make([]byte, 1+8+identity.AddressBytes)
	bz[0] = HandKeyPrefix[0]
	binary.BigEndian.PutUint64(bz[1:9], gameID)
	copy(bz[9:], player[:])
	return bz
}

func RoundKey(gameID uint64, round uint8) []byte {
	bz := make([]byte, 1+8+1)
	bz[0] = RoundKeyPrefix[0]
	binary.BigEndian.PutUint64(bz[1:9], gameID)
	bz[9] = round
	return bz
}

func CiphertextKey(h fhe.Handle) []byte {
	return append([]byte{CiphertextKeyPrefix[0]}, h[:]...)
}

func ACLKey(h fhe.Handle, addr identity.Address) []byte {
	bz := make([]byte, 0, 1+fhe.HandleBytes+identity.AddressBytes)
	bz = append(bz, ACLKeyPrefix[0])
	bz = append(bz, h[:]...)
	return append(bz, addr[:]...)
}

func NonceKey(addr identity.Address) []byte {
	return append([]byte{NonceKeyPrefix[0]}, addr[:]...)
}
