package arena

import (
	"testing"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

var (
	alice = identity.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = identity.MustParseAddress("0x0000000000000000000000000000000000000b0b")
	carol = identity.MustParseAddress("0x00000000000000000000000000000000000ca201")
)

// testChain runs keeper calls the way the app does: each call gets a staged
// cache that is written back only on success.
type testChain struct {
	t      *testing.T
	db     dbm.DB
	key    *fhe.NetworkKey
	maxOps int
	height int64
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	key, err := fhe.GenerateNetworkKey()
	require.NoError(t, err)
	return &testChain{t: t, db: dbm.NewMemDB(), key: key, maxOps: 64}
}

func (c *testChain) tx(fn func(k *Keeper) error) ([]Event, error) {
	c.t.Helper()
	c.height++
	cache := state.NewView(c.db)
	store := state.NewStore(cache)
	ex, err := fhe.NewExecutor(c.key, store, identity.ProgramAddress(), fhe.Seed{Height: c.height}, c.maxOps)
	require.NoError(c.t, err)
	k := NewKeeper(store, ex, log.NewNopLogger())
	if err := fn(k); err != nil {
		return nil, err
	}
	cache.Write()
	return k.Events(), nil
}

func (c *testChain) store() *state.Store {
	return state.NewStore(state.NewView(c.db))
}

func (c *testChain) querier() *Querier {
	return NewQuerier(c.store())
}

func (c *testChain) decrypt(h fhe.Handle) uint64 {
	c.t.Helper()
	ct, err := c.store().GetCiphertext(h)
	require.NoError(c.t, err)
	require.NotNil(c.t, ct)
	v, err := c.key.Decrypt(ct)
	require.NoError(c.t, err)
	return v
}

func (c *testChain) allowed(h fhe.Handle, a identity.Address) bool {
	c.t.Helper()
	ok, err := c.store().IsAllowed(h, a)
	require.NoError(c.t, err)
	return ok
}

func (c *testChain) mustCreate(host identity.Address) uint64 {
	c.t.Helper()
	var id uint64
	_, err := c.tx(func(k *Keeper) error {
		var err error
		id, err = k.CreateGame(host)
		return err
	})
	require.NoError(c.t, err)
	return id
}

func (c *testChain) join(caller identity.Address, id uint64) error {
	_, err := c.tx(func(k *Keeper) error { return k.JoinGame(caller, id) })
	return err
}

func (c *testChain) start(caller identity.Address, id uint64) error {
	_, err := c.tx(func(k *Keeper) error { return k.StartGame(caller, id) })
	return err
}

func (c *testChain) play(caller identity.Address, id uint64, idx uint8) (*PlayResult, error) {
	var res *PlayResult
	_, err := c.tx(func(k *Keeper) error {
		var err error
		res, err = k.PlayCard(caller, id, idx)
		return err
	})
	return res, err
}

func (c *testChain) mustStartedGame() uint64 {
	c.t.Helper()
	id := c.mustCreate(alice)
	require.NoError(c.t, c.join(bob, id))
	require.NoError(c.t, c.start(alice, id))
	return id
}

func (c *testChain) hand(id uint64, p identity.Address) *state.Hand {
	c.t.Helper()
	h, err := c.querier().PlayerCards(id, p)
	require.NoError(c.t, err)
	return h
}

func (c *testChain) game(id uint64) *state.Game {
	c.t.Helper()
	g, err := c.querier().Game(id)
	require.NoError(c.t, err)
	return g
}

func programAddr() identity.Address {
	return identity.ProgramAddress()
}
