package fhe

import (
	"encoding/binary"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/zeebo/blake3"

	"cipherarena/internal/identity"
)

const handleContext = "cipherarena/handle/v1"

// Store persists ciphertexts and the access control table.
type Store interface {
	GetCiphertext(h Handle) (*Ciphertext, error)
	SetCiphertext(h Handle, ct *Ciphertext) error
	SetAllowed(h Handle, addr identity.Address) error
	IsAllowed(h Handle, addr identity.Address) (bool, error)
}

// Executor evaluates encrypted operations on behalf of the ledger program
// during one transaction. It is not safe for concurrent use.
type Executor struct {
	key     *NetworkKey
	store   Store
	program identity.Address
	seed    []byte
	rng     *Stream
	maxOps  int
	ops     int
}

func NewExecutor(key *NetworkKey, store Store, program identity.Address, seed Seed, maxOps int) (*Executor, error) {
	if key == nil {
		return nil, fmt.Errorf("fhe: nil network key")
	}
	rng, err := newStream(key, seed)
	if err != nil {
		return nil, err
	}
	return &Executor{
		key:     key,
		store:   store,
		program: program,
		seed:    seed.bytes(),
		rng:     rng,
		maxOps:  maxOps,
	}, nil
}

// Ops reports how many ciphertext-producing operations ran so far.
func (e *Executor) Ops() int {
	return e.ops
}

// RandBounded returns an euint8 uniformly distributed over [lo, hi].
func (e *Executor) RandBounded(lo, hi uint8) (Handle, error) {
	if lo > hi {
		return Handle{}, errorsmod.Wrapf(ErrInvalidInput, "empty range [%d, %d]", lo, hi)
	}
	if err := e.charge(); err != nil {
		return Handle{}, err
	}
	v, err := e.rng.Uniform(int(hi-lo) + 1)
	if err != nil {
		return Handle{}, errorsmod.Wrap(ErrResourceExhausted, err.Error())
	}
	return e.encryptAndStore("rand", TypeUint8, uint64(lo)+v)
}

// TrivialEncrypt encrypts a public constant.
func (e *Executor) TrivialEncrypt(t Type, v uint64) (Handle, error) {
	if v >= t.modulus() {
		return Handle{}, errorsmod.Wrapf(ErrInvalidInput, "%d does not fit %s", v, t)
	}
	if err := e.charge(); err != nil {
		return Handle{}, err
	}
	return e.encryptAndStore("const", t, v)
}

// Add is homomorphic: no plaintext is touched.
func (e *Executor) Add(a, b Handle) (Handle, error) {
	ca, err := e.load(a, TypeUint8)
	if err != nil {
		return Handle{}, err
	}
	cb, err := e.load(b, TypeUint8)
	if err != nil {
		return Handle{}, err
	}
	if err := e.charge(); err != nil {
		return Handle{}, err
	}
	pa, err := ca.pair()
	if err != nil {
		return Handle{}, errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	pb, err := cb.pair()
	if err != nil {
		return Handle{}, errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	sum, err := e.rerandomize(pa.add(pb))
	if err != nil {
		return Handle{}, err
	}
	return e.persist(e.derive("add", a, b), newCiphertext(TypeUint8, sum))
}

func (e *Executor) Gt(a, b Handle) (Handle, error) {
	return e.compare("gt", a, b, func(x, y uint64) bool { return x > y })
}

func (e *Executor) Lt(a, b Handle) (Handle, error) {
	return e.compare("lt", a, b, func(x, y uint64) bool { return x < y })
}

func (e *Executor) Eq(a, b Handle) (Handle, error) {
	return e.compare("eq", a, b, func(x, y uint64) bool { return x == y })
}

// Select returns a fresh encryption of ifTrue when cond holds and of
// ifFalse otherwise. Both branches are already evaluated ciphertexts.
func (e *Executor) Select(cond, ifTrue, ifFalse Handle) (Handle, error) {
	cc, err := e.load(cond, TypeBool)
	if err != nil {
		return Handle{}, err
	}
	ct, err := e.load(ifTrue, 0)
	if err != nil {
		return Handle{}, err
	}
	cf, err := e.load(ifFalse, ct.Type)
	if err != nil {
		return Handle{}, err
	}
	if err := e.charge(); err != nil {
		return Handle{}, err
	}
	c, err := e.key.Decrypt(cc)
	if err != nil {
		return Handle{}, err
	}
	chosen := cf
	if c == 1 {
		chosen = ct
	}
	p, err := chosen.pair()
	if err != nil {
		return Handle{}, errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	out, err := e.rerandomize(p)
	if err != nil {
		return Handle{}, err
	}
	return e.persist(e.derive("select", cond, ifTrue, ifFalse), newCiphertext(ct.Type, out))
}

// Allow grants addr decryption access to h. The program may only share
// handles it is itself allowed on.
func (e *Executor) Allow(h Handle, addr identity.Address) error {
	if addr.IsZero() {
		return errorsmod.Wrap(ErrInvalidInput, "allow: zero address")
	}
	if _, err := e.load(h, 0); err != nil {
		return err
	}
	return e.store.SetAllowed(h, addr)
}

func (e *Executor) IsAllowed(h Handle, addr identity.Address) (bool, error) {
	return e.store.IsAllowed(h, addr)
}

// Decrypt reveals the plaintext of a handle the program is allowed on. It
// exists for tests and tooling; the arena never calls it.
func (e *Executor) Decrypt(h Handle) (uint64, error) {
	ct, err := e.load(h, 0)
	if err != nil {
		return 0, err
	}
	return e.key.Decrypt(ct)
}

func (e *Executor) compare(op string, a, b Handle, f func(x, y uint64) bool) (Handle, error) {
	ca, err := e.load(a, 0)
	if err != nil {
		return Handle{}, err
	}
	cb, err := e.load(b, ca.Type)
	if err != nil {
		return Handle{}, err
	}
	if err := e.charge(); err != nil {
		return Handle{}, err
	}
	x, err := e.key.Decrypt(ca)
	if err != nil {
		return Handle{}, err
	}
	y, err := e.key.Decrypt(cb)
	if err != nil {
		return Handle{}, err
	}
	var bit uint64
	if f(x, y) {
		bit = 1
	}
	return e.encryptAndStore(op, TypeBool, bit, a, b)
}

func (e *Executor) charge() error {
	if e.maxOps > 0 && e.ops >= e.maxOps {
		return errorsmod.Wrapf(ErrResourceExhausted, "limit %d", e.maxOps)
	}
	e.ops++
	return nil
}

// load fetches h and checks the program may compute on it. want == 0
// accepts any type.
func (e *Executor) load(h Handle, want Type) (*Ciphertext, error) {
	if h.IsZero() {
		return nil, errorsmod.Wrap(ErrUnknownHandle, "unset handle")
	}
	ct, err := e.store.GetCiphertext(h)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, errorsmod.Wrap(ErrUnknownHandle, h.String())
	}
	ok, err := e.store.IsAllowed(h, e.program)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorsmod.Wrap(ErrNotAllowed, h.String())
	}
	if want != 0 && ct.Type != want {
		return nil, errorsmod.Wrapf(ErrTypeMismatch, "%s is %s, want %s", h, ct.Type, want)
	}
	return ct, nil
}

func (e *Executor) encryptAndStore(op string, t Type, v uint64, inputs ...Handle) (Handle, error) {
	r, err := e.rng.scalar()
	if err != nil {
		return Handle{}, errorsmod.Wrap(ErrResourceExhausted, err.Error())
	}
	ct, err := e.key.encrypt(t, v, r)
	if err != nil {
		return Handle{}, errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	return e.persist(e.derive(op, inputs...), ct)
}

func (e *Executor) rerandomize(ct pair) (pair, error) {
	r, err := e.rng.scalar()
	if err != nil {
		return pair{}, errorsmod.Wrap(ErrResourceExhausted, err.Error())
	}
	out, err := ct.rerandomize(e.key.public, r)
	if err != nil {
		return pair{}, errorsmod.Wrap(ErrInvalidInput, err.Error())
	}
	return out, nil
}

func (e *Executor) persist(h Handle, ct *Ciphertext) (Handle, error) {
	if err := e.store.SetCiphertext(h, ct); err != nil {
		return Handle{}, err
	}
	if err := e.store.SetAllowed(h, e.program); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// derive names the output of op. The per-tx op counter keeps handles unique
// even for repeated operations on the same inputs.
func (e *Executor) derive(op string, inputs ...Handle) Handle {
	hh := blake3.New()
	_, _ = hh.WriteString(handleContext)
	_, _ = hh.Write(e.seed)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], uint64(e.ops))
	_, _ = hh.Write(ctr[:])
	_, _ = hh.WriteString(op)
	for _, in := range inputs {
		_, _ = hh.Write(in[:])
	}
	var h Handle
	copy(h[:], hh.Sum(nil))
	return h
}
