package arena

import (
	"errors"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

// Outcome computes the encrypted tri-state comparison of a and b:
//
//	Select(a > b, 1, 0) + Select(a < b, 2, 0)
//
// which is 0 on a tie, 1 when a is greater and 2 when b is greater. Both
// selects are always evaluated; nothing branches on plaintext.
func Outcome(cop Coprocessor, a, b fhe.Handle) (fhe.Handle, error) {
	gt, err := cop.Gt(a, b)
	if err != nil {
		return fhe.Handle{}, err
	}
	lt, err := cop.Lt(a, b)
	if err != nil {
		return fhe.Handle{}, err
	}
	zero, err := cop.TrivialEncrypt(fhe.TypeUint8, state.OutcomeTie)
	if err != nil {
		return fhe.Handle{}, err
	}
	hostWins, err := cop.TrivialEncrypt(fhe.TypeUint8, state.OutcomeHostWins)
	if err != nil {
		return fhe.Handle{}, err
	}
	oppWins, err := cop.TrivialEncrypt(fhe.TypeUint8, state.OutcomeOpponentWin)
	if err != nil {
		return fhe.Handle{}, err
	}
	ifGt, err := cop.Select(gt, hostWins, zero)
	if err != nil {
		return fhe.Handle{}, err
	}
	ifLt, err := cop.Select(lt, oppWins, zero)
	if err != nil {
		return fhe.Handle{}, err
	}
	return cop.Add(ifGt, ifLt)
}

type Resolver struct {
	cop Coprocessor
}

func NewResolver(cop Coprocessor) *Resolver {
	return &Resolver{cop: cop}
}

// Resolve compares the two played cards and grants the outcome to both
// participants.
func (r *Resolver) Resolve(g *state.Game, hostCard, opponentCard fhe.Handle) (fhe.Handle, error) {
	out, err := Outcome(r.cop, hostCard, opponentCard)
	if err != nil {
		return fhe.Handle{}, coprocessorError(err, "resolve round %d of game %d", g.CurrentRound, g.ID)
	}
	for _, p := range []identity.Address{g.Host, g.Opponent} {
		if err := r.cop.Allow(out, p); err != nil {
			return fhe.Handle{}, coprocessorError(err, "grant outcome")
		}
	}
	return out, nil
}

func isResourceExhausted(err error) bool {
	return errors.Is(err, fhe.ErrResourceExhausted) || errors.Is(err, ErrResourceExhausted)
}
