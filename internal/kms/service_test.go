package kms

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
	"cipherarena/internal/typeddata"
)

const testChainID = "cipherarena-test"

var now = time.Unix(1_700_000_000, 0)

type fixture struct {
	svc    *Service
	store  *state.Store
	alice  *identity.PrivateKey
	bob    *identity.PrivateKey
	handle fhe.Handle
	value  uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := fhe.GenerateNetworkKey()
	require.NoError(t, err)
	store := state.NewStore(state.NewView(dbm.NewMemDB()))
	ex, err := fhe.NewExecutor(key, store, identity.ProgramAddress(), fhe.Seed{Height: 1}, 0)
	require.NoError(t, err)

	alice, err := identity.GenerateKey()
	require.NoError(t, err)
	bob, err := identity.GenerateKey()
	require.NoError(t, err)

	h, err := ex.RandBounded(1, 5)
	require.NoError(t, err)
	require.NoError(t, ex.Allow(h, alice.Address()))
	v, err := ex.Decrypt(h)
	require.NoError(t, err)

	svc := NewService(Config{ChainID: testChainID, MaxDurationDays: 365, ClockSkew: 5 * time.Minute}, key, log.NewNopLogger()).
		WithClock(func() time.Time { return now })
	return &fixture{svc: svc, store: store, alice: alice, bob: bob, handle: h, value: v}
}

type session struct {
	pub, priv *[32]byte
	req       *UserDecryptRequest
}

// request builds a request from signer claiming to be user.
func (f *fixture) request(t *testing.T, signer *identity.PrivateKey, user identity.Address, start time.Time, days uint64, handles ...fhe.Handle) session {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	program := identity.ProgramAddress()
	msg := typeddata.UserDecryptRequest{
		PublicKey:         pub[:],
		ContractAddresses: []identity.Address{program},
		StartTimestamp:    uint64(start.Unix()),
		DurationDays:      days,
	}
	sig, err := typeddata.Sign(signer, typeddata.DecryptionDomain(testChainID), msg)
	require.NoError(t, err)

	req := &UserDecryptRequest{
		SessionID:         uuid.NewString(),
		PublicKey:         pub[:],
		Signature:         sig,
		ContractAddresses: [][]byte{program.Bytes()},
		UserAddress:       user.Bytes(),
		StartTimestamp:    msg.StartTimestamp,
		DurationDays:      days,
	}
	for _, h := range handles {
		hh := h
		req.HandlePairs = append(req.HandlePairs, HandlePair{Handle: hh[:], Program: program.Bytes()})
	}
	return session{pub: pub, priv: priv, req: req}
}

func TestUserDecrypt_SealsPlaintextForOwner(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, f.alice, f.alice.Address(), now.Add(-time.Hour), 10, f.handle)

	body, err := Marshal(s.req)
	require.NoError(t, err)
	out, err := f.svc.HandleQuery(f.store, body)
	require.NoError(t, err)

	var resp UserDecryptResponse
	require.NoError(t, Unmarshal(out, &resp))
	require.Equal(t, s.req.SessionID, resp.SessionID)
	require.Len(t, resp.Results, 1)
	require.Equal(t, f.handle[:], resp.Results[0].Handle)

	v, err := Open(resp.Results[0].Sealed, s.pub, s.priv)
	require.NoError(t, err)
	require.Equal(t, f.value, v)

	// A different ephemeral key cannot open the result.
	otherPub, otherPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = Open(resp.Results[0].Sealed, otherPub, otherPriv)
	require.Error(t, err)
}

func TestUserDecrypt_Window(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		start time.Time
		days  uint64
		want  error
	}{
		{"expired", now.Add(-11 * 24 * time.Hour), 10, ErrAuthExpired},
		{"exactly at end", now.Add(-10 * 24 * time.Hour), 10, ErrAuthExpired},
		{"future", now.Add(time.Hour), 10, ErrAuthInvalid},
		{"zero days", now, 0, ErrAuthInvalid},
		{"too long", now, 366, ErrAuthInvalid},
		{"within skew", now.Add(time.Minute), 10, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := f.request(t, f.alice, f.alice.Address(), tc.start, tc.days, f.handle)
			resp, err := f.svc.UserDecrypt(f.store, s.req)
			if tc.want == nil {
				require.NoError(t, err)
				require.Len(t, resp.Results, 1)
				return
			}
			require.True(t, errors.Is(err, tc.want), "got %v", err)
			require.Nil(t, resp)
		})
	}
}

func TestUserDecrypt_SignatureMustMatchUser(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, f.bob, f.alice.Address(), now, 10, f.handle)
	_, err := f.svc.UserDecrypt(f.store, s.req)
	require.True(t, errors.Is(err, ErrAuthInvalid), "got %v", err)

	// Tampering with a signed field after signing invalidates the request.
	s = f.request(t, f.alice, f.alice.Address(), now, 10, f.handle)
	s.req.DurationDays = 11
	_, err = f.svc.UserDecrypt(f.store, s.req)
	require.True(t, errors.Is(err, ErrAuthInvalid), "got %v", err)

	// A signature for another chain does not verify here.
	other := NewService(Config{ChainID: "elsewhere"}, f.svc.key, nil).WithClock(func() time.Time { return now })
	s = f.request(t, f.alice, f.alice.Address(), now, 10, f.handle)
	_, err = other.UserDecrypt(f.store, s.req)
	require.True(t, errors.Is(err, ErrAuthInvalid), "got %v", err)
}

func TestUserDecrypt_RequiresGrant(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, f.bob, f.bob.Address(), now, 10, f.handle)
	_, err := f.svc.UserDecrypt(f.store, s.req)
	require.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	var missing fhe.Handle
	missing[0] = 9
	s = f.request(t, f.alice, f.alice.Address(), now, 10, f.handle, missing)
	resp, err := f.svc.UserDecrypt(f.store, s.req)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	require.Nil(t, resp)
}

func TestUserDecrypt_ProgramMustBeSignedAndAllowed(t *testing.T) {
	f := newFixture(t)
	s := f.request(t, f.alice, f.alice.Address(), now, 10, f.handle)
	s.req.HandlePairs[0].Program = typeddata.VerifierAddress().Bytes()
	_, err := f.svc.UserDecrypt(f.store, s.req)
	require.True(t, errors.Is(err, ErrAuthInvalid), "got %v", err)
}

func TestUserDecrypt_RejectsMalformed(t *testing.T) {
	f := newFixture(t)
	mutations := map[string]func(r *UserDecryptRequest){
		"session":    func(r *UserDecryptRequest) { r.SessionID = "nope" },
		"no handles": func(r *UserDecryptRequest) { r.HandlePairs = nil },
		"pubkey":     func(r *UserDecryptRequest) { r.PublicKey = r.PublicKey[:16] },
		"user":       func(r *UserDecryptRequest) { r.UserAddress = []byte{1} },
		"handle":     func(r *UserDecryptRequest) { r.HandlePairs[0].Handle = []byte{1} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := f.request(t, f.alice, f.alice.Address(), now, 10, f.handle)
			mutate(s.req)
			_, err := f.svc.UserDecrypt(f.store, s.req)
			require.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
		})
	}

	_, err := f.svc.HandleQuery(f.store, []byte{0xff, 0x00})
	require.True(t, errors.Is(err, ErrInvalidRequest))
}
