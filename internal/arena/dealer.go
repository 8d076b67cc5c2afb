package arena

import (
	errorsmod "cosmossdk.io/errors"

	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

// Card values are uniform over [CardMin, CardMax].
const (
	CardMin = 1
	CardMax = 5
)

// Dealer creates hands. Each card is granted to its owner only; the program
// keeps access implicitly as the producer of the ciphertext.
type Dealer struct {
	store *state.Store
	cop   Coprocessor
}

func NewDealer(store *state.Store, cop Coprocessor) *Dealer {
	return &Dealer{store: store, cop: cop}
}

// Deal draws TotalRounds fresh encrypted cards for player in gameID.
// Dealing a player twice is an InvalidState error.
func (d *Dealer) Deal(gameID uint64, player identity.Address) (*state.Hand, error) {
	existing, err := d.store.GetHand(gameID, player)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrInvalidState.Wrapf("player %s already dealt in game %d", player, gameID)
	}

	hand := &state.Hand{}
	for i := range hand.Cards {
		h, err := d.cop.RandBounded(CardMin, CardMax)
		if err != nil {
			return nil, coprocessorError(err, "deal card %d", i)
		}
		if err := d.cop.Allow(h, player); err != nil {
			return nil, coprocessorError(err, "grant card %d", i)
		}
		hand.Cards[i] = h
	}
	if err := d.store.SetHand(gameID, player, hand); err != nil {
		return nil, err
	}
	return hand, nil
}

func coprocessorError(err error, format string, args ...any) error {
	if isResourceExhausted(err) {
		return errorsmod.Wrapf(ErrResourceExhausted, format+": %s", append(args, err.Error())...)
	}
	return errorsmod.Wrapf(err, format, args...)
}
