package client

import (
	"context"
	"crypto/rand"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/sync/errgroup"

	"cipherarena/internal/arena"
	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/kms"
	"cipherarena/internal/state"
	"cipherarena/internal/typeddata"
)

// UserDecrypt runs the decryption authorization protocol for handles the
// client's key holds grants on. Every attempt uses a fresh ephemeral keypair,
// signature and session; typed authorization failures are not retried.
func (c *Client) UserDecrypt(ctx context.Context, handles ...fhe.Handle) (map[fhe.Handle]uint64, error) {
	if c.key == nil {
		return nil, ErrNoKey
	}
	if len(handles) == 0 {
		return nil, errorsmod.Wrap(kms.ErrInvalidRequest, "no handles")
	}
	var lastErr error
	for attempt := 1; attempt <= c.opts.DecryptAttempts; attempt++ {
		out, err := c.userDecryptOnce(ctx, handles)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("user decrypt attempt failed", "attempt", attempt, "err", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("user decrypt failed after %d attempts: %w", c.opts.DecryptAttempts, lastErr)
}

func (c *Client) userDecryptOnce(ctx context.Context, handles []fhe.Handle) (map[fhe.Handle]uint64, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ephemeral key: %w", err)
	}
	defer func() { *priv = [32]byte{} }()

	program := identity.ProgramAddress()
	msg := typeddata.UserDecryptRequest{
		PublicKey:         pub[:],
		ContractAddresses: []identity.Address{program},
		StartTimestamp:    uint64(c.now().Unix()),
		DurationDays:      c.opts.DurationDays,
	}
	domain := typeddata.DecryptionDomain(c.opts.ChainID)
	if c.opts.Confirm != nil {
		if err := c.opts.Confirm(domain, msg); err != nil {
			return nil, ErrRejected.Wrap(err.Error())
		}
	}
	sig, err := typeddata.Sign(c.key, domain, msg)
	if err != nil {
		return nil, err
	}

	req := kms.UserDecryptRequest{
		SessionID:         uuid.NewString(),
		PublicKey:         pub[:],
		Signature:         sig,
		ContractAddresses: [][]byte{program.Bytes()},
		UserAddress:       c.key.Address().Bytes(),
		StartTimestamp:    msg.StartTimestamp,
		DurationDays:      msg.DurationDays,
	}
	want := make(map[fhe.Handle]bool, len(handles))
	for _, h := range handles {
		hh := h
		req.HandlePairs = append(req.HandlePairs, kms.HandlePair{Handle: hh[:], Program: program.Bytes()})
		want[h] = true
	}
	body, err := kms.Marshal(&req)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := c.query(ctx, kms.QueryPath, body, &raw); err != nil {
		return nil, err
	}
	var resp kms.UserDecryptResponse
	if err := kms.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID != req.SessionID {
		return nil, fmt.Errorf("user decrypt: session mismatch")
	}

	out := make(map[fhe.Handle]uint64, len(resp.Results))
	for _, r := range resp.Results {
		var h fhe.Handle
		if len(r.Handle) != fhe.HandleBytes {
			return nil, fmt.Errorf("user decrypt: malformed handle in response")
		}
		copy(h[:], r.Handle)
		if !want[h] {
			return nil, fmt.Errorf("user decrypt: unexpected handle %s", h)
		}
		v, err := kms.Open(r.Sealed, pub, priv)
		if err != nil {
			return nil, err
		}
		out[h] = v
	}
	if len(out) != len(want) {
		return nil, fmt.Errorf("user decrypt: got %d results for %d handles", len(out), len(want))
	}
	return out, nil
}

// retryable reports whether err came from transport rather than from a
// registered failure such as an expired or unauthorized request.
func retryable(err error) bool {
	space, _, _ := errorsmod.ABCIInfo(err, false)
	return space == errorsmod.UndefinedCodespace
}

// DecryptCard decrypts the client's own card at cardIndex.
func (c *Client) DecryptCard(ctx context.Context, gameID uint64, cardIndex uint8) (uint64, error) {
	me, err := c.Address()
	if err != nil {
		return 0, err
	}
	if cardIndex >= state.TotalRounds {
		return 0, errorsmod.Wrapf(arena.ErrInvalidRequest, "card index %d out of range", cardIndex)
	}
	hand, err := c.PlayerCards(ctx, gameID, me)
	if err != nil {
		return 0, err
	}
	h := hand.Cards[cardIndex]
	if h.IsZero() {
		return 0, ErrNotReady.Wrapf("no cards dealt to %s in game %d", me, gameID)
	}
	out, err := c.UserDecrypt(ctx, h)
	if err != nil {
		return 0, err
	}
	return out[h], nil
}

// DecryptHand decrypts all of the client's cards in one session.
func (c *Client) DecryptHand(ctx context.Context, gameID uint64) ([state.TotalRounds]uint64, error) {
	var values [state.TotalRounds]uint64
	me, err := c.Address()
	if err != nil {
		return values, err
	}
	hand, err := c.PlayerCards(ctx, gameID, me)
	if err != nil {
		return values, err
	}
	if hand.Cards[0].IsZero() {
		return values, ErrNotReady.Wrapf("no cards dealt to %s in game %d", me, gameID)
	}
	out, err := c.UserDecrypt(ctx, hand.Cards[:]...)
	if err != nil {
		return values, err
	}
	for i, h := range hand.Cards {
		values[i] = out[h]
	}
	return values, nil
}

// DecryptRound decrypts a resolved round's outcome code.
func (c *Client) DecryptRound(ctx context.Context, gameID uint64, round uint8) (uint64, error) {
	if c.key == nil {
		return 0, ErrNoKey
	}
	r, err := c.RoundOutcome(ctx, gameID, round)
	if err != nil {
		return 0, err
	}
	if !r.Resolved || r.Outcome.IsZero() {
		return 0, ErrNotReady.Wrapf("round %d of game %d not resolved", round, gameID)
	}
	out, err := c.UserDecrypt(ctx, r.Outcome)
	if err != nil {
		return 0, err
	}
	return out[r.Outcome], nil
}

// RoundOutcomes fetches every round concurrently. A failed fetch degrades
// to an unresolved round instead of failing the batch.
func (c *Client) RoundOutcomes(ctx context.Context, gameID uint64) [state.TotalRounds]arena.RoundOutcome {
	var out [state.TotalRounds]arena.RoundOutcome
	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		g.Go(func() error {
			r, err := c.RoundOutcome(gctx, gameID, uint8(i))
			if err != nil {
				c.logger.Debug("round fetch failed", "gameId", gameID, "round", i, "err", err)
				return nil
			}
			out[i] = *r
			return nil
		})
	}
	_ = g.Wait()
	return out
}
