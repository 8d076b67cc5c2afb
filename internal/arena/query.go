package arena

import (
	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

// Querier serves read-only projections. It never exposes plaintext.
type Querier struct {
	store *state.Store
}

func NewQuerier(store *state.Store) *Querier {
	return &Querier{store: store}
}

func (q *Querier) Games() ([]state.Game, error) {
	next, err := q.store.NextGameID()
	if err != nil {
		return nil, err
	}
	out := make([]state.Game, 0, next-1)
	for id := uint64(1); id < next; id++ {
		g, err := q.store.GetGame(id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (q *Querier) Game(gameID uint64) (*state.Game, error) {
	g, err := q.store.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrInvalidState.Wrapf("game %d not found", gameID)
	}
	return g, nil
}

// PlayerCards returns the player's hand, or an all-unset hand when the
// player was never dealt.
func (q *Querier) PlayerCards(gameID uint64, player identity.Address) (*state.Hand, error) {
	if _, err := q.Game(gameID); err != nil {
		return nil, err
	}
	h, err := q.store.GetHand(gameID, player)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return &state.Hand{}, nil
	}
	return h, nil
}

type PlayerStatus struct {
	CardsPlayed int                     `json:"cardsPlayed"`
	Used        [state.TotalRounds]bool `json:"used"`
}

func (q *Querier) PlayerStatus(gameID uint64, player identity.Address) (*PlayerStatus, error) {
	h, err := q.PlayerCards(gameID, player)
	if err != nil {
		return nil, err
	}
	return &PlayerStatus{CardsPlayed: h.CardsPlayed(), Used: h.Used}, nil
}

type RoundOutcome struct {
	Outcome  fhe.Handle `json:"outcomeHandle"`
	Resolved bool       `json:"resolved"`
}

func (q *Querier) RoundOutcome(gameID uint64, round uint8) (*RoundOutcome, error) {
	if round >= state.TotalRounds {
		return nil, ErrInvalidRequest.Wrapf("round %d out of range", round)
	}
	if _, err := q.Game(gameID); err != nil {
		return nil, err
	}
	r, err := q.store.GetRound(gameID, round)
	if err != nil {
		return nil, err
	}
	return &RoundOutcome{Outcome: r.Outcome, Resolved: r.Resolved}, nil
}
