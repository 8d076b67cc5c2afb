package arena

import (
	"strconv"

	"cosmossdk.io/log"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

// Keeper is the game lifecycle manager. A Keeper runs inside one
// transaction: its store is expected to be a staged view the caller commits
// only when the operation succeeds.
type Keeper struct {
	store    *state.Store
	dealer   *Dealer
	resolver *Resolver
	logger   log.Logger
	events   []Event
}

func NewKeeper(store *state.Store, cop Coprocessor, logger log.Logger) *Keeper {
	if store == nil {
		panic("arena keeper: store is nil")
	}
	if cop == nil {
		panic("arena keeper: coprocessor is nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Keeper{
		store:    store,
		dealer:   NewDealer(store, cop),
		resolver: NewResolver(cop),
		logger:   logger.With("module", ModuleName),
	}
}

// Events returns the events emitted so far.
func (k *Keeper) Events() []Event {
	return k.events
}

func (k *Keeper) emit(ev Event) {
	k.events = append(k.events, ev)
}

func (k *Keeper) CreateGame(caller identity.Address) (uint64, error) {
	if caller.IsZero() {
		return 0, ErrInvalidRequest.Wrap("missing caller")
	}
	id, err := k.store.NextGameID()
	if err != nil {
		return 0, err
	}
	if err := k.store.SetNextGameID(id + 1); err != nil {
		return 0, err
	}
	if err := k.store.SetGame(&state.Game{ID: id, Host: caller}); err != nil {
		return 0, err
	}

	k.emit(NewEvent(EventTypeGameCreated, gameIDAttr(id), NewAttribute("host", caller.String())))
	k.logger.Info("game created", "gameId", id, "host", caller.String())
	return id, nil
}

func (k *Keeper) JoinGame(caller identity.Address, gameID uint64) error {
	if caller.IsZero() {
		return ErrInvalidRequest.Wrap("missing caller")
	}
	g, err := k.mustGame(gameID)
	if err != nil {
		return err
	}
	if g.HasOpponent() {
		return ErrInvalidState.Wrapf("game %d is full", gameID)
	}
	if caller == g.Host {
		return ErrInvalidState.Wrap("host cannot join own game")
	}
	g.Opponent = caller
	if err := k.store.SetGame(g); err != nil {
		return err
	}

	k.emit(NewEvent(EventTypeGameJoined, gameIDAttr(gameID), NewAttribute("opponent", caller.String())))
	k.logger.Info("game joined", "gameId", gameID, "opponent", caller.String())
	return nil
}

// StartGame deals both hands. Either both players are dealt or, on error,
// the caller must discard every write of the transaction.
func (k *Keeper) StartGame(caller identity.Address, gameID uint64) error {
	g, err := k.mustGame(gameID)
	if err != nil {
		return err
	}
	if !g.IsParticipant(caller) {
		return ErrUnauthorized.Wrapf("%s is not a participant of game %d", caller, gameID)
	}
	if !g.HasOpponent() {
		return ErrInvalidState.Wrapf("game %d has no opponent", gameID)
	}
	if g.Started {
		return ErrInvalidState.Wrapf("game %d already started", gameID)
	}

	for _, p := range []identity.Address{g.Host, g.Opponent} {
		if _, err := k.dealer.Deal(gameID, p); err != nil {
			k.logger.Warn("deal failed", "gameId", gameID, "player", p.String(), "err", err)
			return err
		}
	}
	g.Started = true
	if err := k.store.SetGame(g); err != nil {
		return err
	}

	k.emit(NewEvent(EventTypeGameStarted, gameIDAttr(gameID)))
	k.logger.Info("game started", "gameId", gameID)
	return nil
}

// PlayResult describes what a play did to the current round.
type PlayResult struct {
	Round    uint8      `json:"round"`
	Resolved bool       `json:"resolved"`
	Outcome  fhe.Handle `json:"outcomeHandle"`
}

// PlayCard puts the caller's card into their slot of the current round. The
// second player to fill the round triggers resolution.
func (k *Keeper) PlayCard(caller identity.Address, gameID uint64, cardIndex uint8) (*PlayResult, error) {
	g, err := k.mustGame(gameID)
	if err != nil {
		return nil, err
	}
	if !g.IsParticipant(caller) {
		return nil, ErrUnauthorized.Wrapf("%s is not a participant of game %d", caller, gameID)
	}
	if !g.Started {
		return nil, ErrInvalidState.Wrapf("game %d not started", gameID)
	}
	if g.Completed() {
		return nil, ErrInvalidState.Wrapf("game %d completed", gameID)
	}
	if cardIndex >= state.TotalRounds {
		return nil, ErrInvalidState.Wrapf("card index %d out of range", cardIndex)
	}

	hand, err := k.store.GetHand(gameID, caller)
	if err != nil {
		return nil, err
	}
	if hand == nil {
		return nil, ErrInvalidState.Wrapf("no hand for %s in game %d", caller, gameID)
	}
	if hand.Used[cardIndex] {
		return nil, ErrInvalidState.Wrapf("card %d already used", cardIndex)
	}

	roundIdx := g.CurrentRound
	round, err := k.store.GetRound(gameID, roundIdx)
	if err != nil {
		return nil, err
	}
	isHost := caller == g.Host
	if (isHost && round.HostPlayed) || (!isHost && round.OpponentPlayed) {
		return nil, ErrInvalidState.Wrapf("already played in round %d", roundIdx)
	}

	card := hand.Cards[cardIndex]
	hand.Used[cardIndex] = true
	if isHost {
		round.HostCard, round.HostPlayed = card, true
	} else {
		round.OpponentCard, round.OpponentPlayed = card, true
	}

	res := &PlayResult{Round: roundIdx}
	if round.HostPlayed && round.OpponentPlayed {
		out, err := k.resolver.Resolve(g, round.HostCard, round.OpponentCard)
		if err != nil {
			k.logger.Warn("resolve failed", "gameId", gameID, "round", roundIdx, "err", err)
			return nil, err
		}
		round.Outcome, round.Resolved = out, true
		g.CurrentRound++
		res.Resolved, res.Outcome = true, out
	}

	if err := k.store.SetHand(gameID, caller, hand); err != nil {
		return nil, err
	}
	if err := k.store.SetRound(gameID, roundIdx, round); err != nil {
		return nil, err
	}
	if err := k.store.SetGame(g); err != nil {
		return nil, err
	}

	roundAttr := NewAttribute("round", strconv.Itoa(int(roundIdx)))
	k.emit(NewEvent(EventTypeCardPlayed,
		gameIDAttr(gameID),
		NewAttribute("player", caller.String()),
		roundAttr,
		NewAttribute("cardIndex", strconv.Itoa(int(cardIndex))),
	))
	if res.Resolved {
		k.emit(NewEvent(EventTypeRoundResolved, gameIDAttr(gameID), roundAttr, NewAttribute("outcomeHandle", res.Outcome.String())))
		k.logger.Info("round resolved", "gameId", gameID, "round", roundIdx, "outcome", res.Outcome.String())
		if g.Completed() {
			k.emit(NewEvent(EventTypeGameCompleted, gameIDAttr(gameID)))
			k.logger.Info("game completed", "gameId", gameID)
		}
	}
	return res, nil
}

func (k *Keeper) mustGame(gameID uint64) (*state.Game, error) {
	g, err := k.store.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrInvalidState.Wrapf("game %d not found", gameID)
	}
	return g, nil
}
