// Package tokens issues and consumes email verification tokens.
//
// A token is a random secret bound to an account id. Only its hash is
// stored. Repositories return an account's tokens newest first, so Consume
// always judges the most recently issued token.
package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sl "account_service/internal/lib/logger/sl"
	"account_service/internal/lib/verification"
	"account_service/internal/models"

	"github.com/google/uuid"
)

type Result int

const (
	NotFound Result = iota
	Verified
	Expired
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Verified:
		return "verified"
	case Expired:
		return "expired"
	case Mismatch:
		return "mismatch"
	default:
		return "not_found"
	}
}

type Repository interface {
	SaveToken(ctx context.Context, token models.VerificationToken) error
	// Tokens returns the account's tokens ordered newest first.
	Tokens(ctx context.Context, accountID string) ([]models.VerificationToken, error)
	DeleteToken(ctx context.Context, token models.VerificationToken) error
	DeleteTokens(ctx context.Context, accountID string) error
	// ExpiredAccountIDs lists accounts whose every token expired before now.
	ExpiredAccountIDs(ctx context.Context, now time.Time) ([]string, error)
}

type Hasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, hashed []byte) bool
}

type Store struct {
	log    *slog.Logger
	repo   Repository
	hasher Hasher
	now    func() time.Time
}

func New(log *slog.Logger, repo Repository, hasher Hasher) *Store {
	return &Store{
		log:    log,
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Issue creates a token for accountID valid for ttl and returns the
// plaintext secret. Existing tokens for the account are left in place.
func (s *Store) Issue(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	const op = "tokens.Issue"

	secret := verification.NewSecret(accountID)

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	token := models.VerificationToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: hash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.repo.SaveToken(ctx, token); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return secret, nil
}

func (s *Store) FindByAccount(ctx context.Context, accountID string) ([]models.VerificationToken, error) {
	const op = "tokens.FindByAccount"

	list, err := s.repo.Tokens(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// Consume checks secret against the newest token of accountID. Expired and
// verified tokens are deleted; a mismatch leaves the token in place.
func (s *Store) Consume(ctx context.Context, accountID, secret string) (Result, error) {
	const op = "tokens.Consume"

	log := s.log.With(slog.String("op", op))

	list, err := s.FindByAccount(ctx, accountID)
	if err != nil {
		return NotFound, fmt.Errorf("%s: %w", op, err)
	}

	if len(list) == 0 {
		return NotFound, nil
	}

	token := list[0]

	if token.IsExpired(s.now()) {
		if err := s.repo.DeleteToken(ctx, token); err != nil {
			return Expired, fmt.Errorf("%s: %w", op, err)
		}

		log.Info("verification token expired", slog.String("account_id", accountID))

		return Expired, nil
	}

	if !s.hasher.Verify(secret, token.TokenHash) {
		log.Info("verification secret mismatch", slog.String("account_id", accountID))

		return Mismatch, nil
	}

	if err := s.repo.DeleteToken(ctx, token); err != nil {
		log.Error("failed to delete consumed token", sl.Err(err))

		return Verified, fmt.Errorf("%s: %w", op, err)
	}

	return Verified, nil
}

func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) error {
	const op = "tokens.DeleteAllForAccount"

	if err := s.repo.DeleteTokens(ctx, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ExpiredAccounts lists accounts left with nothing but expired tokens.
func (s *Store) ExpiredAccounts(ctx context.Context) ([]string, error) {
	const op = "tokens.ExpiredAccounts"

	ids, err := s.repo.ExpiredAccountIDs(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}
