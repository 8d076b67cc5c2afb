package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"cipherarena/internal/app"
	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/kms"
)

const testChainID = "cipherarena-test"

var errTransport = errors.New("connection reset")

// localNode drives an in-process app the way a single-validator node would:
// each broadcast becomes its own block.
type localNode struct {
	app *app.ArenaApp

	mu     sync.Mutex
	height int64

	// fail returns a transport error for a query path when it reports true.
	fail      func(path string) bool
	kmsBodies [][]byte
}

func newLocalNode(t *testing.T) *localNode {
	t.Helper()
	key, err := fhe.GenerateNetworkKey()
	require.NoError(t, err)
	a, err := app.New(dbm.NewMemDB(), key, app.Options{
		ChainID: testChainID,
		KMS:     kms.Config{MaxDurationDays: 365},
	}, nil)
	require.NoError(t, err)
	return &localNode{app: a}
}

func (n *localNode) ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error) {
	n.mu.Lock()
	if path == kms.QueryPath {
		n.kmsBodies = append(n.kmsBodies, append([]byte(nil), data...))
	}
	fail := n.fail != nil && n.fail(path)
	n.mu.Unlock()
	if fail {
		return nil, errTransport
	}
	res, err := n.app.Query(ctx, &abci.QueryRequest{Path: path, Data: data})
	if err != nil {
		return nil, err
	}
	return &coretypes.ResultABCIQuery{Response: *res}, nil
}

func (n *localNode) BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	check, err := n.app.CheckTx(ctx, &abci.CheckTxRequest{Tx: tx})
	if err != nil {
		return nil, err
	}
	if check.Code != abci.CodeTypeOK {
		return &coretypes.ResultBroadcastTxCommit{CheckTx: *check, Hash: tx.Hash()}, nil
	}
	n.height++
	fb, err := n.app.FinalizeBlock(ctx, &abci.FinalizeBlockRequest{Height: n.height, Txs: [][]byte{tx}})
	if err != nil {
		return nil, err
	}
	if _, err := n.app.Commit(ctx, &abci.CommitRequest{}); err != nil {
		return nil, err
	}
	return &coretypes.ResultBroadcastTxCommit{
		CheckTx:  *check,
		TxResult: *fb.TxResults[0],
		Hash:     tx.Hash(),
		Height:   n.height,
	}, nil
}

func (n *localNode) kmsCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.kmsBodies)
}

func newTestClient(t *testing.T, node NodeClient) *Client {
	t.Helper()
	k, err := identity.GenerateKey()
	require.NoError(t, err)
	return New(node, k, Options{ChainID: testChainID}, nil)
}

func failPrefix(prefix string, times int) func(string) bool {
	left := times
	return func(path string) bool {
		if strings.HasPrefix(path, prefix) && left > 0 {
			left--
			return true
		}
		return false
	}
}

func mustAddr(t *testing.T, c *Client) identity.Address {
	t.Helper()
	a, err := c.Address()
	require.NoError(t, err)
	return a
}
