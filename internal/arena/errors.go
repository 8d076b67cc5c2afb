package arena

import errorsmod "cosmossdk.io/errors"

const ModuleName = "arena"

// arena sentinel errors.
var (
	ErrInvalidRequest    = errorsmod.Register(ModuleName, 1, "invalid request")
	ErrInvalidState      = errorsmod.Register(ModuleName, 2, "invalid state")
	ErrUnauthorized      = errorsmod.Register(ModuleName, 3, "unauthorized")
	ErrResourceExhausted = errorsmod.Register(ModuleName, 4, "resource exhausted")
)
