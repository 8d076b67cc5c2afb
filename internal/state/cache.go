package state

import (
	"bytes"
	"fmt"
	"sort"

	"cosmossdk.io/store/cachekv"
	"cosmossdk.io/store/dbadapter"
	"cosmossdk.io/store/listenkv"
	storetypes "cosmossdk.io/store/types"
	dbm "github.com/cosmos/cosmos-db"
)

// KVStore is the store the repository runs on.
type KVStore = storetypes.KVStore

// Writer is the write side of a cosmos-db DB or Batch.
type Writer interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// StoreKey names the arena store in recorded writes.
var StoreKey = storetypes.NewKVStoreKey("arena")

// NewView returns a cache over the committed contents of db. Writes stay in
// the cache; Write flushes them straight to db.
func NewView(db dbm.DB) storetypes.CacheKVStore {
	return cachekv.NewStore(dbadapter.Store{DB: db})
}

// KV is one net write of a block. Value is nil for deletions.
type KV struct {
	Key   []byte
	Value []byte
}

// Block stages one block over committed state. Every write that reaches the
// block, directly or by flushing a tx cache, is recorded so the block's net
// writes can be hashed and committed in one batch.
type Block struct {
	cache    *cachekv.Store
	tracked  *listenkv.Store
	listener *storetypes.MemoryListener
	net      map[string][]byte
	deleted  map[string]bool
}

func NewBlock(db dbm.DB) *Block {
	cache := cachekv.NewStore(dbadapter.Store{DB: db})
	listener := storetypes.NewMemoryListener()
	return &Block{
		cache:    cache,
		tracked:  listenkv.NewStore(cache, StoreKey, listener),
		listener: listener,
		net:      map[string][]byte{},
		deleted:  map[string]bool{},
	}
}

// KV is the block's own store. Writes to it are recorded.
func (b *Block) KV() KVStore {
	return b.tracked
}

// CacheWrap stages a tx over the block. Nothing reaches the block until
// Write is called on the result.
func (b *Block) CacheWrap() storetypes.CacheKVStore {
	return cachekv.NewStore(b.tracked)
}

func (b *Block) drain() {
	for _, p := range b.listener.PopStateCache() {
		k := string(p.Key)
		if p.Delete {
			delete(b.net, k)
			b.deleted[k] = true
			continue
		}
		b.net[k] = bytes.Clone(p.Value)
		delete(b.deleted, k)
	}
}

// Writes returns the block's net writes sorted by key; the last write to a
// key wins.
func (b *Block) Writes() []KV {
	b.drain()
	out := make([]KV, 0, len(b.net)+len(b.deleted))
	for k, v := range b.net {
		out = append(out, KV{Key: []byte(k), Value: bytes.Clone(v)})
	}
	for k := range b.deleted {
		out = append(out, KV{Key: []byte(k)})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}

func (b *Block) Len() int {
	b.drain()
	return len(b.net) + len(b.deleted)
}

// Flush writes the block's net writes to w in key order.
func (b *Block) Flush(w Writer) error {
	for _, kv := range b.Writes() {
		var err error
		if kv.Value == nil {
			err = w.Delete(kv.Key)
		} else {
			err = w.Set(kv.Key, kv.Value)
		}
		if err != nil {
			return fmt.Errorf("flush %x: %w", kv.Key, err)
		}
	}
	return nil
}
