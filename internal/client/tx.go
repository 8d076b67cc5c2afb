package client

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	cmttypes "github.com/cometbft/cometbft/types"

	"cipherarena/internal/arena"
	"cipherarena/internal/codec"
)

// broadcast signs msg with the next nonce and waits for it to be committed.
// Failures come back as the registered error of the codespace that raised
// them.
func (c *Client) broadcast(ctx context.Context, typ string, msg any) ([]byte, error) {
	if c.key == nil {
		return nil, ErrNoKey
	}
	nonce, err := c.Nonce(ctx, c.key.Address())
	if err != nil {
		return nil, err
	}
	tx, err := codec.NewSignedTx(c.key, typ, msg, nonce+1)
	if err != nil {
		return nil, err
	}
	res, err := c.node.BroadcastTxCommit(ctx, cmttypes.Tx(tx))
	if err != nil {
		return nil, fmt.Errorf("broadcast %s: %w", typ, err)
	}
	if res.CheckTx.Code != 0 {
		return nil, errorsmod.ABCIError(res.CheckTx.Codespace, res.CheckTx.Code, res.CheckTx.Log)
	}
	if res.TxResult.Code != 0 {
		return nil, errorsmod.ABCIError(res.TxResult.Codespace, res.TxResult.Code, res.TxResult.Log)
	}
	c.logger.Debug("tx committed", "type", typ, "height", res.Height, "hash", res.Hash.String())
	return res.TxResult.Data, nil
}

func (c *Client) CreateGame(ctx context.Context) (uint64, error) {
	data, err := c.broadcast(ctx, codec.TypeCreateGame, codec.CreateGameTx{})
	if err != nil {
		return 0, err
	}
	var out struct {
		GameID uint64 `json:"gameId"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, errorsmod.Wrapf(ErrTxFailed, "decode create_game result: %v", err)
	}
	return out.GameID, nil
}

func (c *Client) JoinGame(ctx context.Context, gameID uint64) error {
	_, err := c.broadcast(ctx, codec.TypeJoinGame, codec.JoinGameTx{GameID: gameID})
	return err
}

func (c *Client) StartGame(ctx context.Context, gameID uint64) error {
	_, err := c.broadcast(ctx, codec.TypeStartGame, codec.StartGameTx{GameID: gameID})
	return err
}

func (c *Client) PlayCard(ctx context.Context, gameID uint64, cardIndex uint8) (*arena.PlayResult, error) {
	data, err := c.broadcast(ctx, codec.TypePlayCard, codec.PlayCardTx{GameID: gameID, CardIndex: cardIndex})
	if err != nil {
		return nil, err
	}
	var out arena.PlayResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errorsmod.Wrapf(ErrTxFailed, "decode play_card result: %v", err)
	}
	return &out, nil
}
