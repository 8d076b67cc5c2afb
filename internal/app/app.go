package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cosmos/cosmos-db"

	"cipherarena/internal/fhe"
	"cipherarena/internal/kms"
	"cipherarena/internal/state"
)

const (
	AppVersion uint64 = 1

	DefaultMaxOpsPerTx = 64
)

type Options struct {
	ChainID     string
	MaxOpsPerTx int
	KMS         kms.Config
}

// ArenaApp is the ledger runtime: every arena transaction executes against a
// staged cache and either commits fully or leaves no trace.
type ArenaApp struct {
	*abci.BaseApplication

	db     dbm.DB
	key    *fhe.NetworkKey
	kms    *kms.Service
	opts   Options
	logger log.Logger

	mu       sync.Mutex
	height   int64
	lastHash []byte
	block    *state.Block
}

func New(db dbm.DB, key *fhe.NetworkKey, opts Options, logger log.Logger) (*ArenaApp, error) {
	if db == nil {
		return nil, fmt.Errorf("app: db is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("app: network key is nil")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.MaxOpsPerTx == 0 {
		opts.MaxOpsPerTx = DefaultMaxOpsPerTx
	}
	if opts.KMS.ChainID == "" {
		opts.KMS.ChainID = opts.ChainID
	}

	committed := state.NewStore(state.NewView(db))
	height, err := committed.Height()
	if err != nil {
		return nil, fmt.Errorf("load height: %w", err)
	}
	lastHash, err := committed.AppHash()
	if err != nil {
		return nil, fmt.Errorf("load app hash: %w", err)
	}

	return &ArenaApp{
		BaseApplication: abci.NewBaseApplication(),
		db:              db,
		key:             key,
		kms:             kms.NewService(opts.KMS, key, logger),
		opts:            opts,
		logger:          logger.With("module", "app"),
		height:          height,
		lastHash:        lastHash,
	}, nil
}

func (a *ArenaApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "CipherArena",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *ArenaApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	if a.opts.ChainID != "" && req.ChainId != "" && req.ChainId != a.opts.ChainID {
		return nil, fmt.Errorf("chain id mismatch: node=%q app=%q", req.ChainId, a.opts.ChainID)
	}
	return &abci.InitChainResponse{}, nil
}

// CheckTx only admits well-formed, correctly signed txs with a fresh nonce.
func (a *ArenaApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, _, _, err := a.authenticate(state.NewStore(state.NewView(a.db)), req.Tx)
	if err != nil {
		space, code, logMsg := errorsmod.ABCIInfo(err, false)
		return &abci.CheckTxResponse{Code: code, Codespace: space, Log: logMsg}, nil
	}
	return &abci.CheckTxResponse{Code: abci.CodeTypeOK}, nil
}

func (a *ArenaApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.block = state.NewBlock(a.db)
	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for i, txBytes := range req.Txs {
		txResults = append(txResults, a.deliverTx(txBytes, req.Height, uint32(i)))
	}

	appHash := state.ComputeAppHash(a.lastHash, req.Height, a.block.Writes())
	meta := state.NewStore(a.block.KV())
	if err := meta.SetHeight(req.Height); err != nil {
		return nil, err
	}
	if err := meta.SetAppHash(appHash); err != nil {
		return nil, err
	}
	a.height = req.Height
	a.lastHash = appHash

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   appHash,
	}, nil
}

// Commit persists the finalized block in one batch.
func (a *ArenaApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.block == nil {
		return &abci.CommitResponse{}, nil
	}
	writes := a.block.Len()
	batch := a.db.NewBatch()
	defer func() { _ = batch.Close() }()
	if err := a.block.Flush(batch); err != nil {
		return nil, fmt.Errorf("stage block %d: %w", a.height, err)
	}
	// CometBFT expects Commit to not fail; an error halts the node loudly.
	if err := batch.WriteSync(); err != nil {
		return nil, fmt.Errorf("commit block %d: %w", a.height, err)
	}
	a.block = nil

	a.logger.Info("committed block", "height", a.height, "writes", writes, "appHash", hex.EncodeToString(a.lastHash))
	return &abci.CommitResponse{}, nil
}
