package fhe

import errorsmod "cosmossdk.io/errors"

const Codespace = "fhe"

// Sentinel errors of the encrypted value primitive.
var (
	ErrInvalidInput      = errorsmod.Register(Codespace, 1, "invalid input")
	ErrUnknownHandle     = errorsmod.Register(Codespace, 2, "unknown ciphertext handle")
	ErrNotAllowed        = errorsmod.Register(Codespace, 3, "handle not allowed for caller")
	ErrTypeMismatch      = errorsmod.Register(Codespace, 4, "ciphertext type mismatch")
	ErrResourceExhausted = errorsmod.Register(Codespace, 5, "encrypted operation budget exhausted")
	ErrDecryption        = errorsmod.Register(Codespace, 6, "decryption failed")
)
