package client

import errorsmod "cosmossdk.io/errors"

const Codespace = "client"

var (
	// ErrNotReady means the value exists but cannot be decrypted yet, e.g. a
	// round that is not resolved.
	ErrNotReady = errorsmod.Register(Codespace, 1, "not ready")
	ErrNoKey    = errorsmod.Register(Codespace, 2, "no signing key configured")
	ErrTxFailed = errorsmod.Register(Codespace, 3, "tx failed")
	// ErrRejected means Options.Confirm declined to sign a decryption request.
	ErrRejected = errorsmod.Register(Codespace, 4, "signing rejected")
)
