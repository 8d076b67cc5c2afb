// Package kms is the decryption service. It releases a plaintext only to a
// user who holds a grant on the handle and who signed a current,
// domain-separated authorization for an ephemeral key. Plaintexts leave the
// service sealed to that key.
package kms

import (
	"crypto/rand"
	"io"
	"math"
	"time"

	"cosmossdk.io/log"
	"github.com/google/uuid"

	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
	"cipherarena/internal/typeddata"
)

const secondsPerDay = 24 * 60 * 60

// Reader is the ledger view the service validates against.
type Reader interface {
	GetCiphertext(h fhe.Handle) (*fhe.Ciphertext, error)
	IsAllowed(h fhe.Handle, addr identity.Address) (bool, error)
}

type Config struct {
	ChainID         string
	MaxDurationDays uint64
	ClockSkew       time.Duration
}

type Service struct {
	domain  typeddata.Domain
	key     *fhe.NetworkKey
	maxDays uint64
	skew    time.Duration
	logger  log.Logger

	now  func() time.Time
	rand io.Reader
}

func NewService(cfg Config, key *fhe.NetworkKey, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Service{
		domain:  typeddata.DecryptionDomain(cfg.ChainID),
		key:     key,
		maxDays: cfg.MaxDurationDays,
		skew:    cfg.ClockSkew,
		logger:  logger.With("module", "kms"),
		now:     time.Now,
		rand:    rand.Reader,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Domain() typeddata.Domain {
	return s.domain
}

// UserDecrypt validates req against view and returns every requested
// plaintext sealed to req.PublicKey. Any failure releases nothing.
func (s *Service) UserDecrypt(view Reader, req *UserDecryptRequest) (*UserDecryptResponse, error) {
	user, handles, programs, err := s.authorize(req)
	if err != nil {
		s.logger.Warn("user decrypt rejected", "session", req.SessionID, "err", err)
		return nil, err
	}

	type grant struct {
		handle fhe.Handle
		ct     *fhe.Ciphertext
	}
	grants := make([]grant, 0, len(handles))
	for i, h := range handles {
		ct, err := view.GetCiphertext(h)
		if err != nil {
			return nil, err
		}
		if ct == nil {
			return nil, ErrNotFound.Wrap(h.String())
		}
		for _, a := range []identity.Address{user, programs[i]} {
			ok, err := view.IsAllowed(h, a)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.logger.Warn("user decrypt unauthorized", "session", req.SessionID, "handle", h.String(), "addr", a.String())
				return nil, ErrUnauthorized.Wrapf("%s on %s", a, h)
			}
		}
		grants = append(grants, grant{handle: h, ct: ct})
	}

	var recipient [32]byte
	copy(recipient[:], req.PublicKey)
	resp := &UserDecryptResponse{SessionID: req.SessionID}
	for _, g := range grants {
		v, err := s.key.Decrypt(g.ct)
		if err != nil {
			return nil, err
		}
		sealed, err := Seal(v, &recipient, s.rand)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, Result{Handle: g.handle[:], Sealed: sealed})
	}

	s.logger.Info("user decrypt", "session", req.SessionID, "user", user.String(), "handles", len(grants))
	return resp, nil
}

// HandleQuery decodes a CBOR request, serves it and encodes the response.
func (s *Service) HandleQuery(view Reader, data []byte) ([]byte, error) {
	var req UserDecryptRequest
	if err := Unmarshal(data, &req); err != nil {
		return nil, ErrInvalidRequest.Wrap(err.Error())
	}
	resp, err := s.UserDecrypt(view, &req)
	if err != nil {
		return nil, err
	}
	return Marshal(resp)
}

func (s *Service) authorize(req *UserDecryptRequest) (identity.Address, []fhe.Handle, []identity.Address, error) {
	if req == nil {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap("nil request")
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap("invalid session id")
	}
	if len(req.HandlePairs) == 0 || len(req.HandlePairs) > MaxHandlesPerRequest {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrapf("expected 1..%d handles, got %d", MaxHandlesPerRequest, len(req.HandlePairs))
	}
	if len(req.PublicKey) != 32 {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap("ephemeral public key must be 32 bytes")
	}
	user, err := identity.AddressFromBytes(req.UserAddress)
	if err != nil || user.IsZero() {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap("invalid user address")
	}
	msg, err := req.Message()
	if err != nil {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap(err.Error())
	}
	if err := msg.Validate(); err != nil {
		return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap(err.Error())
	}

	signedFor := map[identity.Address]bool{}
	for _, a := range msg.ContractAddresses {
		signedFor[a] = true
	}
	handles := make([]fhe.Handle, 0, len(req.HandlePairs))
	programs := make([]identity.Address, 0, len(req.HandlePairs))
	for _, p := range req.HandlePairs {
		h, err := handleFromBytes(p.Handle)
		if err != nil || h.IsZero() {
			return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap("invalid handle")
		}
		prog, err := identity.AddressFromBytes(p.Program)
		if err != nil {
			return identity.Address{}, nil, nil, ErrInvalidRequest.Wrap("invalid program address")
		}
		if !signedFor[prog] {
			return identity.Address{}, nil, nil, ErrAuthInvalid.Wrapf("program %s not covered by signature", prog)
		}
		handles = append(handles, h)
		programs = append(programs, prog)
	}

	signer, err := typeddata.Recover(s.domain, msg, req.Signature)
	if err != nil {
		return identity.Address{}, nil, nil, ErrAuthInvalid.Wrap(err.Error())
	}
	if signer != user {
		return identity.Address{}, nil, nil, ErrAuthInvalid.Wrap("signature does not match user address")
	}

	if err := s.checkWindow(msg.StartTimestamp, msg.DurationDays); err != nil {
		return identity.Address{}, nil, nil, err
	}
	return user, handles, programs, nil
}

func (s *Service) checkWindow(start, days uint64) error {
	if days == 0 {
		return ErrAuthInvalid.Wrap("zero-day validity window")
	}
	if s.maxDays > 0 && days > s.maxDays {
		return ErrAuthInvalid.Wrapf("validity window of %d days exceeds %d", days, s.maxDays)
	}
	if days > math.MaxUint64/secondsPerDay {
		return ErrAuthInvalid.Wrap("validity window overflows")
	}
	end := start + days*secondsPerDay
	if end < start {
		return ErrAuthInvalid.Wrap("validity window overflows")
	}
	now := s.now()
	if start > uint64(now.Add(s.skew).Unix()) {
		return ErrAuthInvalid.Wrap("start timestamp in the future")
	}
	if uint64(now.Unix()) >= end {
		return ErrAuthExpired.Wrapf("expired at %s", time.Unix(int64(end), 0).UTC().Format(time.RFC3339))
	}
	return nil
}
