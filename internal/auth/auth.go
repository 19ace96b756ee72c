package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"account_service/internal/lib/jwt"
	sl "account_service/internal/lib/logger/sl"
	"account_service/internal/lib/verification"
	"account_service/internal/models"
	"account_service/internal/notify"
	"account_service/internal/storage"
	"account_service/internal/tokens"

	"github.com/google/uuid"
)

type AccountStore interface {
	SaveAccount(ctx context.Context, acc models.Account) error
	Account(ctx context.Context, email string) (models.Account, error)
	AccountByID(ctx context.Context, id string) (models.Account, error)
	SetEmailVerified(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
}

type TokenStore interface {
	Issue(ctx context.Context, accountID string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, accountID, secret string) (tokens.Result, error)
	FindByAccount(ctx context.Context, accountID string) ([]models.VerificationToken, error)
	DeleteAllForAccount(ctx context.Context, accountID string) error
	ExpiredAccounts(ctx context.Context) ([]string, error)
}

type CredentialHasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, hashed []byte) bool
}

type Settings struct {
	// PublicURL is the externally reachable base of the service, used in
	// verification links.
	PublicURL       string
	VerificationTTL time.Duration
	SessionSecret   string
}

type Auth struct {
	log       *slog.Logger
	accounts  AccountStore
	tokens    TokenStore
	hasher    CredentialHasher
	publisher notify.Publisher
	settings  Settings
	now       func() time.Time
}

// Session is the outcome of a successful login.
type Session struct {
	Token   string
	Account models.PublicAccount
}

func New(
	log *slog.Logger,
	accounts AccountStore,
	tokenStore TokenStore,
	hasher CredentialHasher,
	publisher notify.Publisher,
	settings Settings,
) *Auth {
	return &Auth{
		log:       log,
		accounts:  accounts,
		tokens:    tokenStore,
		hasher:    hasher,
		publisher: publisher,
		settings:  settings,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (a *Auth) WithClock(now func() time.Time) *Auth {
	a.now = now
	return a
}

// RegisterNewUser creates an unverified account and mails it a verification
// link. When only the mail step fails the account is kept and returned
// together with ErrVerificationEmailFailed.
func (a *Auth) RegisterNewUser(
	ctx context.Context,
	name string,
	email string,
	password string,
) (models.PublicAccount, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	if err := validateRegistration(name, email, password); err != nil {
		log.Info("invalid registration input", sl.Err(err))
		return models.PublicAccount{}, err
	}

	_, err := a.accounts.Account(ctx, email)
	switch {
	case err == nil:
		log.Warn("user already exists")
		return models.PublicAccount{}, ErrUserExists
	case !errors.Is(err, storage.ErrAccountNotFound):
		log.Error("failed to look up account", sl.Err(err))
		return models.PublicAccount{}, ErrInternal.wrap(err)
	}

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.PublicAccount{}, ErrInternal.wrap(err)
	}

	now := a.now()

	acc := models.Account{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		PassHash:  passHash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.accounts.SaveAccount(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			log.Warn("user already exists")
			return models.PublicAccount{}, ErrUserExists
		}

		log.Error("failed to save account", sl.Err(err))
		return models.PublicAccount{}, ErrInternal.wrap(err)
	}

	log.Info("account created", slog.String("account_id", acc.ID))

	secret, err := a.tokens.Issue(ctx, acc.ID, a.settings.VerificationTTL)
	if err != nil {
		log.Error("failed to issue verification token", sl.Err(err), slog.String("account_id", acc.ID))

		// without a token the account could never be verified or purged
		if delErr := a.accounts.DeleteAccount(ctx, acc.ID); delErr != nil {
			log.Error("failed to roll back account", sl.Err(delErr), slog.String("account_id", acc.ID))
		}

		return models.PublicAccount{}, ErrInternal.wrap(err)
	}

	if err := a.sendVerification(ctx, acc, secret); err != nil {
		log.Error("failed to send verification email", sl.Err(err), slog.String("account_id", acc.ID))
		return acc.Public(), err
	}

	return acc.Public(), nil
}

func (a *Auth) sendVerification(ctx context.Context, acc models.Account, secret string) error {
	link := verification.Link(a.settings.PublicURL, acc.ID, secret)

	msg, err := verification.NewMessage(acc.Email, link, a.settings.VerificationTTL)
	if err != nil {
		return ErrVerificationEmailFailed.wrap(err)
	}

	if err := a.publisher.SendMessage(ctx, msg); err != nil {
		return ErrVerificationEmailFailed.wrap(err)
	}

	return nil
}

// VerifyUser consumes the newest verification token of accountID. An
// expired link removes the pending account entirely.
func (a *Auth) VerifyUser(
	ctx context.Context,
	accountID string,
	secret string,
) error {
	const op = "auth.VerifyUser"

	log := a.log.With(
		slog.String("op", op),
		slog.String("account_id", accountID),
	)

	res, err := a.tokens.Consume(ctx, accountID, secret)
	if err != nil {
		log.Error("failed to consume verification token", sl.Err(err))
		return ErrInternal.wrap(err)
	}

	switch res {
	case tokens.NotFound:
		log.Info("no verification token")
		return ErrAlreadyVerifiedOrMissing

	case tokens.Expired:
		if err := a.tokens.DeleteAllForAccount(ctx, accountID); err != nil {
			log.Error("failed to delete expired tokens", sl.Err(err))
			return ErrInternal.wrap(err)
		}

		if err := a.accounts.DeleteAccount(ctx, accountID); err != nil {
			log.Error("failed to delete expired account", sl.Err(err))
			return ErrInternal.wrap(err)
		}

		log.Info("verification link expired, account removed")
		return ErrLinkExpired

	case tokens.Mismatch:
		return ErrInvalidVerificationDetails
	}

	if err := a.accounts.SetEmailVerified(ctx, accountID); err != nil {
		log.Error("failed to update verification status", sl.Err(err))
		return ErrInternal.wrap(err)
	}

	// Older tokens of a verified account can never be used again.
	if err := a.tokens.DeleteAllForAccount(ctx, accountID); err != nil {
		log.Warn("failed to delete remaining tokens", sl.Err(err))
	}

	log.Info("email verified")

	return nil
}

// Login checks credentials of a verified account and issues a session
// token.
func (a *Auth) Login(
	ctx context.Context,
	email string,
	password string,
) (Session, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	if email == "" || password == "" {
		return Session{}, ErrEmptyCredentials
	}

	acc, err := a.accounts.Account(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Info("account not found")
			return Session{}, ErrInvalidCredentials
		}

		log.Error("failed to get account", sl.Err(err))
		return Session{}, ErrInternal.wrap(err)
	}

	if !acc.IsVerified {
		log.Info("email not verified", slog.String("account_id", acc.ID))
		return Session{}, ErrEmailNotVerified
	}

	if !a.hasher.Verify(password, acc.PassHash) {
		log.Info("invalid password", slog.String("account_id", acc.ID))
		return Session{}, ErrInvalidPassword
	}

	token, err := jwt.NewToken(acc, a.settings.SessionSecret, a.now())
	if err != nil {
		log.Error("failed to generate session token", sl.Err(err))
		return Session{}, ErrInternal.wrap(err)
	}

	log.Info("user logged in successfully", slog.String("account_id", acc.ID))

	return Session{
		Token:   token,
		Account: acc.Public(),
	}, nil
}

// ResendVerification replaces every outstanding token of an unverified
// account with a fresh one. Unknown and verified emails succeed silently
// so the answer does not reveal which addresses are registered.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	const op = "auth.ResendVerification"

	log := a.log.With(slog.String("op", op))

	if err := validateEmail(email); err != nil {
		return err
	}

	acc, err := a.accounts.Account(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Info("resend for unknown email")
			return nil
		}

		log.Error("failed to get account", sl.Err(err))
		return ErrInternal.wrap(err)
	}

	if acc.IsVerified {
		log.Info("resend for verified account", slog.String("account_id", acc.ID))
		return nil
	}

	if err := a.tokens.DeleteAllForAccount(ctx, acc.ID); err != nil {
		log.Error("failed to delete old tokens", sl.Err(err))
		return ErrInternal.wrap(err)
	}

	secret, err := a.tokens.Issue(ctx, acc.ID, a.settings.VerificationTTL)
	if err != nil {
		log.Error("failed to issue verification token", sl.Err(err), slog.String("account_id", acc.ID))
		return ErrInternal.wrap(err)
	}

	if err := a.sendVerification(ctx, acc, secret); err != nil {
		log.Error("failed to resend verification email", sl.Err(err), slog.String("account_id", acc.ID))
		return err
	}

	log.Info("verification email resent", slog.String("account_id", acc.ID))

	return nil
}

// PurgeExpired removes unverified accounts whose every verification token
// has expired, together with their tokens. It returns how many accounts
// were removed.
func (a *Auth) PurgeExpired(ctx context.Context) (int, error) {
	const op = "auth.PurgeExpired"

	log := a.log.With(slog.String("op", op))

	ids, err := a.tokens.ExpiredAccounts(ctx)
	if err != nil {
		log.Error("failed to list expired accounts", sl.Err(err))
		return 0, ErrInternal.wrap(err)
	}

	purged := 0

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return purged, ErrInternal.wrap(err)
		}

		acc, err := a.accounts.AccountByID(ctx, id)
		missing := errors.Is(err, storage.ErrAccountNotFound)
		if err != nil && !missing {
			log.Error("failed to get account", sl.Err(err), slog.String("account_id", id))
			return purged, ErrInternal.wrap(err)
		}

		// a resend may have issued a fresh token since the listing
		live, err := a.hasLiveToken(ctx, id)
		if err != nil {
			log.Error("failed to recheck tokens", sl.Err(err), slog.String("account_id", id))
			return purged, ErrInternal.wrap(err)
		}
		if live {
			continue
		}

		if err := a.tokens.DeleteAllForAccount(ctx, id); err != nil {
			log.Error("failed to delete tokens", sl.Err(err), slog.String("account_id", id))
			return purged, ErrInternal.wrap(err)
		}

		if missing || acc.IsVerified {
			continue
		}

		if err := a.accounts.DeleteAccount(ctx, id); err != nil {
			log.Error("failed to delete account", sl.Err(err), slog.String("account_id", id))
			return purged, ErrInternal.wrap(err)
		}

		purged++
	}

	if purged > 0 {
		log.Info("expired signups purged", slog.Int("count", purged))
	}

	return purged, nil
}

func (a *Auth) hasLiveToken(ctx context.Context, accountID string) (bool, error) {
	list, err := a.tokens.FindByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}

	now := a.now()
	for i := range list {
		if !list[i].IsExpired(now) {
			return true, nil
		}
	}

	return false, nil
}
