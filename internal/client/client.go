// Package client talks to a CipherArena node: it reads game state, submits
// signed transactions and runs the decryption authorization protocol.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"cipherarena/internal/app"
	"cipherarena/internal/arena"
	"cipherarena/internal/identity"
	"cipherarena/internal/state"
	"cipherarena/internal/typeddata"
)

// NodeClient is the part of the CometBFT RPC client we use.
type NodeClient interface {
	ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error)
	BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error)
}

type Options struct {
	ChainID         string
	DurationDays    uint64
	DecryptAttempts int

	// Confirm, when set, is shown every decryption authorization before it
	// is signed. A non-nil error aborts the request with ErrRejected.
	Confirm func(typeddata.Domain, typeddata.UserDecryptRequest) error
}

const (
	DefaultDurationDays    = 10
	DefaultDecryptAttempts = 3
)

type Client struct {
	node   NodeClient
	key    *identity.PrivateKey
	opts   Options
	logger log.Logger
	now    func() time.Time
}

// New returns a client. key may be nil for read-only use.
func New(node NodeClient, key *identity.PrivateKey, opts Options, logger log.Logger) *Client {
	if opts.DurationDays == 0 {
		opts.DurationDays = DefaultDurationDays
	}
	if opts.DecryptAttempts <= 0 {
		opts.DecryptAttempts = DefaultDecryptAttempts
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Client{node: node, key: key, opts: opts, logger: logger.With("module", "client"), now: time.Now}
}

// Dial connects to a node RPC endpoint such as http://127.0.0.1:26657.
func Dial(remote string, key *identity.PrivateKey, opts Options, logger log.Logger) (*Client, error) {
	node, err := rpchttp.New(remote)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", remote, err)
	}
	return New(node, key, opts, logger), nil
}

// Address is the address of the client's signing key.
func (c *Client) Address() (identity.Address, error) {
	if c.key == nil {
		return identity.Address{}, ErrNoKey
	}
	return c.key.Address(), nil
}

func (c *Client) query(ctx context.Context, path string, data []byte, out any) error {
	res, err := c.node.ABCIQuery(ctx, path, data)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	r := res.Response
	if r.Code != 0 {
		return errorsmod.ABCIError(r.Codespace, r.Code, r.Log)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = r.Value
		return nil
	}
	if err := json.Unmarshal(r.Value, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) ProgramAddress(ctx context.Context) (identity.Address, error) {
	var out struct {
		Address identity.Address `json:"address"`
	}
	if err := c.query(ctx, "/program", nil, &out); err != nil {
		return identity.Address{}, err
	}
	return out.Address, nil
}

// DecryptionDomain returns the domain the node's decryption service verifies
// signatures under.
func (c *Client) DecryptionDomain(ctx context.Context) (typeddata.Domain, error) {
	var out struct {
		Domain typeddata.Domain `json:"decryptionDomain"`
	}
	if err := c.query(ctx, "/program", nil, &out); err != nil {
		return typeddata.Domain{}, err
	}
	return out.Domain, nil
}

func (c *Client) Games(ctx context.Context) ([]app.GameView, error) {
	var out []app.GameView
	err := c.query(ctx, "/games", nil, &out)
	return out, err
}

func (c *Client) Game(ctx context.Context, gameID uint64) (*app.GameView, error) {
	var out app.GameView
	if err := c.query(ctx, "/game/"+strconv.FormatUint(gameID, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PlayerCards(ctx context.Context, gameID uint64, player identity.Address) (*state.Hand, error) {
	var out state.Hand
	if err := c.query(ctx, fmt.Sprintf("/cards/%d/%s", gameID, player), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PlayerStatus(ctx context.Context, gameID uint64, player identity.Address) (*arena.PlayerStatus, error) {
	var out arena.PlayerStatus
	if err := c.query(ctx, fmt.Sprintf("/status/%d/%s", gameID, player), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RoundOutcome(ctx context.Context, gameID uint64, round uint8) (*arena.RoundOutcome, error) {
	var out arena.RoundOutcome
	if err := c.query(ctx, fmt.Sprintf("/round/%d/%d", gameID, round), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Nonce(ctx context.Context, addr identity.Address) (uint64, error) {
	var out struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := c.query(ctx, "/nonce/"+addr.String(), nil, &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}
