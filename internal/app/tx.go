package app

import (
	"encoding/json"
	"sort"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"cipherarena/internal/arena"
	"cipherarena/internal/codec"
	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
)

// authenticate decodes txBytes, verifies its signature and checks the nonce
// against store.
func (a *ArenaApp) authenticate(store *state.Store, txBytes []byte) (codec.TxEnvelope, identity.Address, uint64, error) {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return codec.TxEnvelope{}, identity.Address{}, 0, errorsmod.Wrap(ErrTxDecode, err.Error())
	}
	signer, nonce, err := env.Authenticate()
	if err != nil {
		return codec.TxEnvelope{}, identity.Address{}, 0, errorsmod.Wrap(ErrTxAuth, err.Error())
	}
	last, err := store.Nonce(signer)
	if err != nil {
		return codec.TxEnvelope{}, identity.Address{}, 0, err
	}
	if nonce <= last {
		return codec.TxEnvelope{}, identity.Address{}, 0, errorsmod.Wrapf(ErrTxAuth, "replayed tx.nonce %d (last %d)", nonce, last)
	}
	return env, signer, nonce, nil
}

func (a *ArenaApp) deliverTx(txBytes []byte, height int64, index uint32) *abci.ExecTxResult {
	env, signer, nonce, err := a.authenticate(state.NewStore(a.block.KV()), txBytes)
	if err != nil {
		return errResult(err)
	}

	txCache := a.block.CacheWrap()
	store := state.NewStore(txCache)
	seed := fhe.Seed{Height: height, TxIndex: index, TxHash: cmttypes.Tx(txBytes).Hash()}
	ex, err := fhe.NewExecutor(a.key, store, identity.ProgramAddress(), seed, a.opts.MaxOpsPerTx)
	if err != nil {
		return errResult(err)
	}
	k := arena.NewKeeper(store, ex, a.logger)

	data, err := a.route(k, env, signer)
	if err != nil {
		// The tx cache is dropped; only the nonce advances.
		if nerr := state.NewStore(a.block.KV()).SetNonce(signer, nonce); nerr != nil {
			return errResult(nerr)
		}
		a.logger.Debug("tx failed", "type", env.Type, "signer", signer.String(), "err", err)
		return errResult(err)
	}
	if err := store.SetNonce(signer, nonce); err != nil {
		return errResult(err)
	}
	txCache.Write()
	return &abci.ExecTxResult{
		Code:   abci.CodeTypeOK,
		Data:   data,
		Events: toABCIEvents(k.Events()),
	}
}

func (a *ArenaApp) route(k *arena.Keeper, env codec.TxEnvelope, caller identity.Address) ([]byte, error) {
	switch env.Type {
	case codec.TypeCreateGame:
		id, err := k.CreateGame(caller)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]uint64{"gameId": id})

	case codec.TypeJoinGame:
		var msg codec.JoinGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrTxDecode, "bad arena/join_game value")
		}
		return nil, k.JoinGame(caller, msg.GameID)

	case codec.TypeStartGame:
		var msg codec.StartGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrTxDecode, "bad arena/start_game value")
		}
		return nil, k.StartGame(caller, msg.GameID)

	case codec.TypePlayCard:
		var msg codec.PlayCardTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, errorsmod.Wrap(ErrTxDecode, "bad arena/play_card value")
		}
		res, err := k.PlayCard(caller, msg.GameID, msg.CardIndex)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	default:
		return nil, errorsmod.Wrap(ErrUnknownTx, env.Type)
	}
}

func errResult(err error) *abci.ExecTxResult {
	space, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Code: code, Codespace: space, Log: logMsg}
}

func toABCIEvents(evs []arena.Event) []abci.Event {
	out := make([]abci.Event, 0, len(evs))
	for _, e := range evs {
		ev := abci.Event{Type: e.Type}
		attrs := append([]arena.Attribute(nil), e.Attributes...)
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
		for _, at := range attrs {
			ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: at.Key, Value: at.Value, Index: true})
		}
		out = append(out, ev)
	}
	return out
}
