package state

import (
	"bytes"
	"testing"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
)

var (
	alice = identity.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	bob   = identity.MustParseAddress("0x0000000000000000000000000000000000000b0b")
)

func TestView_StagesUntilWrite(t *testing.T) {
	db := dbm.NewMemDB()
	require.NoError(t, db.Set([]byte("a"), []byte("1")))

	v := NewView(db)
	v.Set([]byte("b"), []byte("2"))
	v.Delete([]byte("a"))
	require.Nil(t, v.Get([]byte("a")))

	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	v.Write()
	has, err := db.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, has)
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
}

func TestBlock_DiscardedTxLeavesNoTrace(t *testing.T) {
	db := dbm.NewMemDB()
	block := NewBlock(db)
	block.KV().Set([]byte("k"), []byte("block"))

	tx := block.CacheWrap()
	tx.Set([]byte("k"), []byte("tx"))
	tx.Set([]byte("other"), []byte("tx"))
	require.Equal(t, []byte("tx"), tx.Get([]byte("k")))

	require.Equal(t, []byte("block"), block.KV().Get([]byte("k")))
	require.Equal(t, []KV{{Key: []byte("k"), Value: []byte("block")}}, block.Writes())

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has, "nothing reaches the db before Flush")
}

func TestBlock_RecordsNetWritesOfFlushedTxs(t *testing.T) {
	db := dbm.NewMemDB()
	require.NoError(t, db.Set([]byte("gone"), []byte("x")))
	block := NewBlock(db)

	tx1 := block.CacheWrap()
	tx1.Set([]byte("b"), []byte("1"))
	tx1.Set([]byte("a"), []byte("1"))
	tx1.Write()

	tx2 := block.CacheWrap()
	tx2.Set([]byte("b"), []byte("2"))
	tx2.Delete([]byte("gone"))
	tx2.Write()

	require.Equal(t, []KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("gone")},
	}, block.Writes())
	require.Equal(t, 3, block.Len())

	batch := db.NewBatch()
	defer func() { _ = batch.Close() }()
	require.NoError(t, block.Flush(batch))
	require.NoError(t, batch.WriteSync())

	got, err := db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
	has, err := db.Has([]byte("gone"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestBlock_WritesAreCopies(t *testing.T) {
	block := NewBlock(dbm.NewMemDB())
	block.KV().Set([]byte("k"), []byte("v"))

	w := block.Writes()
	w[0].Value[0] = 'x'
	require.Equal(t, []byte("v"), block.Writes()[0].Value)
}

func TestAppHash_StableAcrossWriteOrder(t *testing.T) {
	b1 := NewBlock(dbm.NewMemDB())
	b1.KV().Set([]byte("bob"), []byte{2})
	b1.KV().Set([]byte("alice"), []byte{1})

	b2 := NewBlock(dbm.NewMemDB())
	b2.KV().Set([]byte("alice"), []byte{1})
	b2.KV().Set([]byte("bob"), []byte{2})

	h1 := ComputeAppHash(nil, 7, b1.Writes())
	h2 := ComputeAppHash(nil, 7, b2.Writes())
	if !bytes.Equal(h1, h2) {
		t.Fatalf("expected stable app hash; h1=%x h2=%x", h1, h2)
	}

	b2.KV().Set([]byte("alice"), []byte{9})
	if bytes.Equal(h1, ComputeAppHash(nil, 7, b2.Writes())) {
		t.Fatalf("expected hash to change after state mutation")
	}
	if bytes.Equal(h1, ComputeAppHash(nil, 8, b1.Writes())) {
		t.Fatalf("expected hash to bind height")
	}
	if bytes.Equal(h1, ComputeAppHash(h1, 7, b1.Writes())) {
		t.Fatalf("expected hash to chain previous hash")
	}
}

func TestStore_Records(t *testing.T) {
	s := NewStore(NewView(dbm.NewMemDB()))

	next, err := s.NextGameID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	g, err := s.GetGame(1)
	require.NoError(t, err)
	require.Nil(t, g)

	require.NoError(t, s.SetGame(&Game{ID: 1, Host: alice}))
	g, err = s.GetGame(1)
	require.NoError(t, err)
	require.Equal(t, alice, g.Host)
	require.False(t, g.HasOpponent())

	h, err := s.GetHand(1, bob)
	require.NoError(t, err)
	require.Nil(t, h)

	r, err := s.GetRound(1, 0)
	require.NoError(t, err)
	require.False(t, r.Resolved)
	require.True(t, r.Outcome.IsZero())

	n, err := s.Nonce(alice)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, s.SetNonce(alice, 4))
	n, err = s.Nonce(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(4), n)
}

func TestStore_ACLIsPerAddress(t *testing.T) {
	s := NewStore(NewView(dbm.NewMemDB()))
	var h fhe.Handle
	h[0] = 1

	require.NoError(t, s.SetAllowed(h, alice))
	ok, err := s.IsAllowed(h, alice)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.IsAllowed(h, bob)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGame_Status(t *testing.T) {
	g := &Game{ID: 1, Host: alice}
	require.Equal(t, "Waiting opponent", g.Status())
	g.Opponent = bob
	require.Equal(t, "Ready to start", g.Status())
	g.Started = true
	require.Equal(t, "In progress", g.Status())
	g.CurrentRound = TotalRounds
	require.Equal(t, "Completed", g.Status())

	require.True(t, g.IsParticipant(bob))
	require.False(t, g.IsParticipant(identity.ProgramAddress()))
	require.False(t, g.IsParticipant(identity.ZeroAddress))
}

func TestHand_CardsPlayed(t *testing.T) {
	h := &Hand{}
	require.Equal(t, 0, h.CardsPlayed())
	h.Used[1], h.Used[4] = true, true
	require.Equal(t, 2, h.CardsPlayed())
}
