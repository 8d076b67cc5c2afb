package kms

import errorsmod "cosmossdk.io/errors"

const Codespace = "kms"

var (
	ErrInvalidRequest = errorsmod.Register(Codespace, 1, "invalid decryption request")
	ErrAuthExpired    = errorsmod.Register(Codespace, 2, "decryption authorization expired")
	ErrAuthInvalid    = errorsmod.Register(Codespace, 3, "decryption authorization invalid")
	ErrUnauthorized   = errorsmod.Register(Codespace, 4, "no decryption grant for handle")
	ErrNotFound       = errorsmod.Register(Codespace, 5, "ciphertext not found")
)
