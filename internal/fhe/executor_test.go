package fhe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherarena/internal/identity"
)

type memStore struct {
	cts map[Handle]*Ciphertext
	acl map[Handle]map[identity.Address]bool
}

func newMemStore() *memStore {
	return &memStore{cts: map[Handle]*Ciphertext{}, acl: map[Handle]map[identity.Address]bool{}}
}

func (m *memStore) GetCiphertext(h Handle) (*Ciphertext, error) { return m.cts[h], nil }

func (m *memStore) SetCiphertext(h Handle, ct *Ciphertext) error {
	m.cts[h] = ct
	return nil
}

func (m *memStore) SetAllowed(h Handle, a identity.Address) error {
	if m.acl[h] == nil {
		m.acl[h] = map[identity.Address]bool{}
	}
	m.acl[h][a] = true
	return nil
}

func (m *memStore) IsAllowed(h Handle, a identity.Address) (bool, error) {
	return m.acl[h][a], nil
}

func newTestExecutor(t *testing.T, maxOps int) (*Executor, *memStore) {
	t.Helper()
	st := newMemStore()
	ex, err := NewExecutor(mustKey(t), st, identity.ProgramAddress(), Seed{Height: 1, TxHash: []byte("tx")}, maxOps)
	require.NoError(t, err)
	return ex, st
}

func decrypt(t *testing.T, ex *Executor, h Handle) uint64 {
	t.Helper()
	v, err := ex.Decrypt(h)
	require.NoError(t, err)
	return v
}

func TestRandBounded_StaysInRange(t *testing.T) {
	ex, _ := newTestExecutor(t, 0)
	seen := map[uint64]bool{}
	for i := 0; i < 200; i++ {
		h, err := ex.RandBounded(1, 5)
		require.NoError(t, err)
		v := decrypt(t, ex, h)
		require.GreaterOrEqual(t, v, uint64(1))
		require.LessOrEqual(t, v, uint64(5))
		seen[v] = true
	}
	require.Len(t, seen, 5)
}

func TestRandBounded_DeterministicPerSeed(t *testing.T) {
	key := mustKey(t)
	seed := Seed{Height: 7, TxIndex: 2, TxHash: []byte{1, 2, 3}}
	run := func() []uint64 {
		st := newMemStore()
		ex, err := NewExecutor(key, st, identity.ProgramAddress(), seed, 0)
		require.NoError(t, err)
		var out []uint64
		for i := 0; i < 10; i++ {
			h, err := ex.RandBounded(1, 5)
			require.NoError(t, err)
			out = append(out, decrypt(t, ex, h))
		}
		return out
	}
	require.Equal(t, run(), run())
}

func TestCompareAndSelect(t *testing.T) {
	ex, _ := newTestExecutor(t, 0)
	enc := func(v uint64) Handle {
		h, err := ex.TrivialEncrypt(TypeUint8, v)
		require.NoError(t, err)
		return h
	}
	cases := []struct{ a, b uint64 }{{1, 5}, {5, 1}, {3, 3}}
	for _, c := range cases {
		a, b := enc(c.a), enc(c.b)
		gt, err := ex.Gt(a, b)
		require.NoError(t, err)
		lt, err := ex.Lt(a, b)
		require.NoError(t, err)
		eq, err := ex.Eq(a, b)
		require.NoError(t, err)

		require.Equal(t, c.a > c.b, decrypt(t, ex, gt) == 1)
		require.Equal(t, c.a < c.b, decrypt(t, ex, lt) == 1)
		require.Equal(t, c.a == c.b, decrypt(t, ex, eq) == 1)

		sel, err := ex.Select(gt, a, b)
		require.NoError(t, err)
		want := c.b
		if c.a > c.b {
			want = c.a
		}
		require.Equal(t, want, decrypt(t, ex, sel))
		require.NotEqual(t, a, sel)
	}
}

func TestAdd_IsHomomorphic(t *testing.T) {
	ex, st := newTestExecutor(t, 0)
	a, err := ex.TrivialEncrypt(TypeUint8, 2)
	require.NoError(t, err)
	b, err := ex.TrivialEncrypt(TypeUint8, 1)
	require.NoError(t, err)
	sum, err := ex.Add(a, b)
	require.NoError(t, err)
	require.Equal(t, uint64(3), decrypt(t, ex, sum))
	require.NotEqual(t, st.cts[a].C1, st.cts[sum].C1)
}

func TestTypeChecks(t *testing.T) {
	ex, _ := newTestExecutor(t, 0)
	n, err := ex.TrivialEncrypt(TypeUint8, 1)
	require.NoError(t, err)
	b, err := ex.TrivialEncrypt(TypeBool, 1)
	require.NoError(t, err)

	_, err = ex.Add(n, b)
	require.True(t, errors.Is(err, ErrTypeMismatch))
	_, err = ex.Select(n, n, n)
	require.True(t, errors.Is(err, ErrTypeMismatch))
	_, err = ex.Gt(n, b)
	require.True(t, errors.Is(err, ErrTypeMismatch))
	_, err = ex.TrivialEncrypt(TypeBool, 2)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestBudget_ResourceExhausted(t *testing.T) {
	ex, _ := newTestExecutor(t, 3)
	for i := 0; i < 3; i++ {
		_, err := ex.RandBounded(1, 5)
		require.NoError(t, err)
	}
	_, err := ex.RandBounded(1, 5)
	require.True(t, errors.Is(err, ErrResourceExhausted))
	require.Equal(t, 3, ex.Ops())
}

func TestACL(t *testing.T) {
	ex, st := newTestExecutor(t, 0)
	h, err := ex.RandBounded(1, 5)
	require.NoError(t, err)

	alice := identity.MustParseAddress("0x00000000000000000000000000000000000a11ce")
	ok, err := ex.IsAllowed(h, alice)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ex.Allow(h, alice))
	ok, err = ex.IsAllowed(h, alice)
	require.NoError(t, err)
	require.True(t, ok)

	require.Error(t, ex.Allow(h, identity.ZeroAddress))
	require.True(t, errors.Is(ex.Allow(Handle{1}, alice), ErrUnknownHandle))

	// A ciphertext the program was never granted cannot be computed on.
	var foreign Handle
	foreign[0] = 0xff
	st.cts[foreign] = st.cts[h]
	_, err = ex.Add(foreign, h)
	require.True(t, errors.Is(err, ErrNotAllowed))
}
