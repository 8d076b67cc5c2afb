package app

import errorsmod "cosmossdk.io/errors"

const Codespace = "app"

var (
	ErrTxDecode    = errorsmod.Register(Codespace, 1, "tx decode error")
	ErrTxAuth      = errorsmod.Register(Codespace, 2, "tx authentication failed")
	ErrUnknownTx   = errorsmod.Register(Codespace, 3, "unknown tx type")
	ErrUnknownPath = errorsmod.Register(Codespace, 4, "unknown query path")
)
