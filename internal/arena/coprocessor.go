package arena

import (
	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
)

// Coprocessor is the encrypted value primitive as seen by the arena. The
// arena never decrypts; it only asks for new ciphertexts derived from
// existing ones and for access grants.
type Coprocessor interface {
	RandBounded(lo, hi uint8) (fhe.Handle, error)
	TrivialEncrypt(t fhe.Type, v uint64) (fhe.Handle, error)
	Add(a, b fhe.Handle) (fhe.Handle, error)
	Gt(a, b fhe.Handle) (fhe.Handle, error)
	Lt(a, b fhe.Handle) (fhe.Handle, error)
	Select(cond, ifTrue, ifFalse fhe.Handle) (fhe.Handle, error)
	Allow(h fhe.Handle, addr identity.Address) error
}

var _ Coprocessor = (*fhe.Executor)(nil)
