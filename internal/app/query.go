package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"cipherarena/internal/arena"
	"cipherarena/internal/identity"
	"cipherarena/internal/kms"
	"cipherarena/internal/state"
)

// GameView is a game as listed by /games and /game/<id>.
type GameView struct {
	state.Game
	Status string `json:"status"`
}

// Query serves committed state. Paths:
//   - /program
//   - /games
//   - /game/<id>
//   - /cards/<id>/<addr>
//   - /status/<id>/<addr>
//   - /round/<id>/<idx>
//   - /nonce/<addr>
//   - /kms/user_decrypt (CBOR request in Data)
func (a *ArenaApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	store := state.NewStore(state.NewView(a.db))
	value, err := a.query(store, strings.TrimSpace(req.Path), req.Data)
	if err != nil {
		space, code, logMsg := errorsmod.ABCIInfo(err, false)
		return &abci.QueryResponse{Code: code, Codespace: space, Log: logMsg, Height: a.height}, nil
	}
	return &abci.QueryResponse{Code: abci.CodeTypeOK, Value: value, Height: a.height}, nil
}

func (a *ArenaApp) query(store *state.Store, path string, data []byte) ([]byte, error) {
	q := arena.NewQuerier(store)
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case path == "/program":
		return json.Marshal(map[string]any{
			"address":          identity.ProgramAddress(),
			"chainId":          a.opts.ChainID,
			"decryptionDomain": a.kms.Domain(),
		})

	case path == "/games":
		games, err := q.Games()
		if err != nil {
			return nil, err
		}
		out := make([]GameView, 0, len(games))
		for _, g := range games {
			out = append(out, GameView{Game: g, Status: g.Status()})
		}
		return json.Marshal(out)

	case path == kms.QueryPath:
		return a.kms.HandleQuery(store, data)

	case parts[0] == "game" && len(parts) == 2:
		id, err := parseGameID(parts[1])
		if err != nil {
			return nil, err
		}
		g, err := q.Game(id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(GameView{Game: *g, Status: g.Status()})

	case parts[0] == "cards" && len(parts) == 3:
		id, player, err := parseGamePlayer(parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		h, err := q.PlayerCards(id, player)
		if err != nil {
			return nil, err
		}
		return json.Marshal(h)

	case parts[0] == "status" && len(parts) == 3:
		id, player, err := parseGamePlayer(parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		st, err := q.PlayerStatus(id, player)
		if err != nil {
			return nil, err
		}
		return json.Marshal(st)

	case parts[0] == "round" && len(parts) == 3:
		id, err := parseGameID(parts[1])
		if err != nil {
			return nil, err
		}
		idx, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return nil, arena.ErrInvalidRequest.Wrap("invalid round index")
		}
		out, err := q.RoundOutcome(id, uint8(idx))
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)

	case parts[0] == "nonce" && len(parts) == 2:
		addr, err := identity.ParseAddress(parts[1])
		if err != nil {
			return nil, arena.ErrInvalidRequest.Wrap(err.Error())
		}
		n, err := store.Nonce(addr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]uint64{"nonce": n})

	default:
		return nil, errorsmod.Wrap(ErrUnknownPath, path)
	}
}

func parseGameID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, arena.ErrInvalidRequest.Wrap("invalid game id")
	}
	return id, nil
}

func parseGamePlayer(rawID, rawAddr string) (uint64, identity.Address, error) {
	id, err := parseGameID(rawID)
	if err != nil {
		return 0, identity.Address{}, err
	}
	addr, err := identity.ParseAddress(rawAddr)
	if err != nil {
		return 0, identity.Address{}, arena.ErrInvalidRequest.Wrap(err.Error())
	}
	return id, addr, nil
}
