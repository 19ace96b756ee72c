package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"account_service/internal/auth"
	"account_service/internal/lib/hasher"
	"account_service/internal/lib/jwt"
	"account_service/internal/lib/logger"
	"account_service/internal/models"
	"account_service/internal/storage"
	"account_service/internal/storage/memory"
	"account_service/internal/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testName     = "Ada Lovelace"
	testEmail    = "ada@example.com"
	testPassword = "correct-horse"
	testSecret   = "session-secret"
	testTTL      = 6 * time.Hour
	testBaseURL  = "https://accounts.example.com"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type outbox struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (o *outbox) SendMessage(_ context.Context, msg models.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last(t *testing.T) models.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()

	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

type env struct {
	auth   *auth.Auth
	repo   *memory.Repo
	tokens *tokens.Store
	outbox *outbox
	clock  *clock
}

func newEnv(t *testing.T) *env {
	t.Helper()

	repo := memory.New()
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	h := hasher.New(bcrypt.MinCost)
	store := tokens.New(logger.Discard(), repo, h).WithClock(clk.Now)
	out := &outbox{}

	a := auth.New(logger.Discard(), repo, store, h, out, auth.Settings{
		PublicURL:       testBaseURL,
		VerificationTTL: testTTL,
		SessionSecret:   testSecret,
	}).WithClock(clk.Now)

	return &env{auth: a, repo: repo, tokens: store, outbox: out, clock: clk}
}

// linkParts splits a verification link into account id and secret.
func linkParts(t *testing.T, link string) (string, string) {
	t.Helper()

	rest, ok := strings.CutPrefix(link, testBaseURL+"/user/verify/")
	require.True(t, ok, "unexpected link %q", link)

	id, secret, ok := strings.Cut(rest, "/")
	require.True(t, ok)

	return id, secret
}

func (e *env) register(t *testing.T, email string) (models.PublicAccount, string) {
	t.Helper()

	acc, err := e.auth.RegisterNewUser(context.Background(), testName, email, testPassword)
	require.NoError(t, err)

	id, secret := linkParts(t, e.outbox.last(t).Link)
	require.Equal(t, acc.ID, id)

	return acc, secret
}

func TestRegisterNewUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, err := e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.NoError(t, err)

	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, testName, acc.Name)
	assert.Equal(t, testEmail, acc.Email)
	assert.False(t, acc.IsVerified)
	assert.Equal(t, e.clock.Now(), acc.CreatedAt)

	stored, err := e.repo.Account(ctx, testEmail)
	require.NoError(t, err)
	assert.NotEqual(t, []byte(testPassword), stored.PassHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PassHash, []byte(testPassword)))

	list, err := e.tokens.FindByAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e.clock.Now().Add(testTTL), list[0].ExpiresAt)

	msg := e.outbox.last(t)
	assert.Equal(t, testEmail, msg.Email)
	assert.Equal(t, models.PurposeEmailVerification, msg.Purpose)
	assert.Contains(t, msg.HTML, msg.Link)

	id, secret := linkParts(t, msg.Link)
	assert.Equal(t, acc.ID, id)
	assert.True(t, strings.HasSuffix(secret, acc.ID))
	assert.NoError(t, bcrypt.CompareHashAndPassword(list[0].TokenHash, []byte(secret)))
}

func TestRegisterNewUser_Validation(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		email    string
		password string
		want     error
	}{
		{name: "empty name", user: "", email: testEmail, password: testPassword, want: auth.ErrEmptyFields},
		{name: "empty email", user: testName, email: "", password: testPassword, want: auth.ErrEmptyFields},
		{name: "empty password", user: testName, email: testEmail, password: "", want: auth.ErrEmptyFields},
		{name: "empty wins over invalid name", user: "R2D2", email: "", password: "x", want: auth.ErrEmptyFields},
		{name: "digits in name", user: "R2D2", email: testEmail, password: testPassword, want: auth.ErrInvalidName},
		{name: "name checked before email", user: "R2D2", email: "nope", password: "x", want: auth.ErrInvalidName},
		{name: "hyphen and apostrophe allowed", user: "Jean-Luc O'Neil", email: "bad@", password: testPassword, want: auth.ErrInvalidEmail},
		{name: "missing domain", user: testName, email: "ada@", password: testPassword, want: auth.ErrInvalidEmail},
		{name: "tld too long", user: testName, email: "ada@example.museum", password: testPassword, want: auth.ErrInvalidEmail},
		{name: "email checked before password", user: testName, email: "ada", password: "short", want: auth.ErrInvalidEmail},
		{name: "short password", user: testName, email: testEmail, password: "1234567", want: auth.ErrPasswordTooShort},
		{name: "long password", user: testName, email: testEmail, password: strings.Repeat("p", 73), want: auth.ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			_, err := e.auth.RegisterNewUser(context.Background(), tt.user, tt.email, tt.password)
			require.ErrorIs(t, err, tt.want)

			var aerr *auth.Error
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, auth.KindValidation, aerr.Kind)

			assert.Zero(t, e.outbox.count())
		})
	}
}

func TestRegisterNewUser_PasswordBoundaries(t *testing.T) {
	e := newEnv(t)

	_, err := e.auth.RegisterNewUser(context.Background(), testName, "a@example.com", "12345678")
	require.NoError(t, err)

	_, err = e.auth.RegisterNewUser(context.Background(), testName, "b@example.com", strings.Repeat("p", 72))
	require.NoError(t, err)
}

func TestRegisterNewUser_Duplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.NoError(t, err)

	_, err = e.auth.RegisterNewUser(ctx, "Someone Else", testEmail, "another-password")
	require.ErrorIs(t, err, auth.ErrUserExists)
	assert.Equal(t, 1, e.outbox.count())
}

// raceStore hides existing accounts from the pre-check so the unique
// constraint at save time is what rejects the duplicate.
type raceStore struct {
	*memory.Repo
}

func (r raceStore) Account(context.Context, string) (models.Account, error) {
	return models.Account{}, storage.ErrAccountNotFound
}

func TestRegisterNewUser_DuplicateAtSave(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.NoError(t, err)

	a := auth.New(logger.Discard(), raceStore{e.repo}, e.tokens, hasher.New(bcrypt.MinCost), e.outbox, auth.Settings{
		PublicURL:       testBaseURL,
		VerificationTTL: testTTL,
		SessionSecret:   testSecret,
	})

	_, err = a.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.ErrorIs(t, err, auth.ErrUserExists)
}

func TestRegisterNewUser_PublishFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.outbox.err = errors.New("broker down")

	acc, err := e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.ErrorIs(t, err, auth.ErrVerificationEmailFailed)
	assert.NotErrorIs(t, err, auth.ErrInternal)
	assert.Equal(t, testEmail, acc.Email)
	assert.NotEmpty(t, acc.ID)

	var aerr *auth.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, auth.KindDependency, aerr.Kind)

	_, err = e.repo.Account(ctx, testEmail)
	require.NoError(t, err, "account is kept when mail fails")
}

type brokenAccounts struct {
	*memory.Repo
}

func (brokenAccounts) Account(context.Context, string) (models.Account, error) {
	return models.Account{}, errors.New("connection reset")
}

func TestRegisterNewUser_StoreFailure(t *testing.T) {
	e := newEnv(t)

	a := auth.New(logger.Discard(), brokenAccounts{e.repo}, e.tokens, hasher.New(bcrypt.MinCost), e.outbox, auth.Settings{
		PublicURL:       testBaseURL,
		VerificationTTL: testTTL,
		SessionSecret:   testSecret,
	})

	_, err := a.RegisterNewUser(context.Background(), testName, testEmail, testPassword)
	require.ErrorIs(t, err, auth.ErrInternal)
	assert.NotContains(t, err.(*auth.Error).Message, "connection reset")

	_, err = a.Login(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, auth.ErrInternal)
}

func TestVerifyUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, secret := e.register(t, testEmail)

	require.NoError(t, e.auth.VerifyUser(ctx, acc.ID, secret))

	stored, err := e.repo.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)

	list, err := e.tokens.FindByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = e.auth.VerifyUser(ctx, acc.ID, secret)
	require.ErrorIs(t, err, auth.ErrAlreadyVerifiedOrMissing)
}

func TestVerifyUser_UnknownAccount(t *testing.T) {
	e := newEnv(t)

	err := e.auth.VerifyUser(context.Background(), "0b6e6a4e-35b4-4a8b-9e43-7f0f0b1e2a3c", "whatever")
	require.ErrorIs(t, err, auth.ErrAlreadyVerifiedOrMissing)
}

func TestVerifyUser_Mismatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, secret := e.register(t, testEmail)

	err := e.auth.VerifyUser(ctx, acc.ID, "not-the-secret")
	require.ErrorIs(t, err, auth.ErrInvalidVerificationDetails)

	stored, err := e.repo.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)

	require.NoError(t, e.auth.VerifyUser(ctx, acc.ID, secret), "token survives a mismatch")
}

func TestVerifyUser_Expired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, secret := e.register(t, testEmail)

	e.clock.Advance(testTTL + time.Second)

	err := e.auth.VerifyUser(ctx, acc.ID, secret)
	require.ErrorIs(t, err, auth.ErrLinkExpired)

	_, err = e.repo.AccountByID(ctx, acc.ID)
	require.ErrorIs(t, err, storage.ErrAccountNotFound)

	list, err := e.tokens.FindByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = e.auth.Login(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.NoError(t, err, "email is free again after expiry")
}

func TestVerifyUser_ExpiryCheckedBeforeSecret(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, _ := e.register(t, testEmail)

	e.clock.Advance(testTTL + time.Minute)

	err := e.auth.VerifyUser(ctx, acc.ID, "wrong")
	require.ErrorIs(t, err, auth.ErrLinkExpired)
}

func TestVerifyUser_AtExpiryInstant(t *testing.T) {
	e := newEnv(t)

	acc, secret := e.register(t, testEmail)

	e.clock.Advance(testTTL)

	require.NoError(t, e.auth.VerifyUser(context.Background(), acc.ID, secret))
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, secret := e.register(t, testEmail)
	require.NoError(t, e.auth.VerifyUser(ctx, acc.ID, secret))

	session, err := e.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	assert.Equal(t, acc.ID, session.Account.ID)
	assert.True(t, session.Account.IsVerified)

	claims, err := jwt.ParseToken(session.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.AccountID)
	assert.Equal(t, testEmail, claims.Email)
	assert.Nil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, e.clock.Now().Unix(), claims.IssuedAt.Unix())

	body, err := json.Marshal(session.Account)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "$2a$")
	assert.NotContains(t, strings.ToLower(string(body)), "pass")
}

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	verified, secret := e.register(t, testEmail)
	require.NoError(t, e.auth.VerifyUser(ctx, verified.ID, secret))

	e.register(t, "pending@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		want     error
		kind     auth.Kind
	}{
		{name: "empty email", email: "", password: testPassword, want: auth.ErrEmptyCredentials, kind: auth.KindValidation},
		{name: "empty password", email: testEmail, password: "", want: auth.ErrEmptyCredentials, kind: auth.KindValidation},
		{name: "unknown account", email: "nobody@example.com", password: testPassword, want: auth.ErrInvalidCredentials, kind: auth.KindAuth},
		{name: "unverified", email: "pending@example.com", password: testPassword, want: auth.ErrEmailNotVerified, kind: auth.KindAuth},
		{name: "unverified with wrong password", email: "pending@example.com", password: "wrong-password", want: auth.ErrEmailNotVerified, kind: auth.KindAuth},
		{name: "wrong password", email: testEmail, password: "wrong-password", want: auth.ErrInvalidPassword, kind: auth.KindAuth},
		{name: "email is case sensitive", email: "ADA@example.com", password: testPassword, want: auth.ErrInvalidCredentials, kind: auth.KindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := e.auth.Login(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, session.Token)

			var aerr *auth.Error
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tt.kind, aerr.Kind)
		})
	}
}

func TestResendVerification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, oldSecret := e.register(t, testEmail)

	e.clock.Advance(time.Minute)
	require.NoError(t, e.auth.ResendVerification(ctx, testEmail))
	require.Equal(t, 2, e.outbox.count())

	id, newSecret := linkParts(t, e.outbox.last(t).Link)
	assert.Equal(t, acc.ID, id)
	assert.NotEqual(t, oldSecret, newSecret)

	list, err := e.tokens.FindByAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1, "resend leaves a single outstanding token")

	err = e.auth.VerifyUser(ctx, acc.ID, oldSecret)
	require.ErrorIs(t, err, auth.ErrInvalidVerificationDetails)

	require.NoError(t, e.auth.VerifyUser(ctx, acc.ID, newSecret))
}

func TestResendVerification_Silent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, secret := e.register(t, testEmail)
	require.NoError(t, e.auth.VerifyUser(ctx, acc.ID, secret))

	require.NoError(t, e.auth.ResendVerification(ctx, testEmail))
	require.NoError(t, e.auth.ResendVerification(ctx, "nobody@example.com"))
	assert.Equal(t, 1, e.outbox.count())
}

func TestResendVerification_InvalidInput(t *testing.T) {
	e := newEnv(t)

	require.ErrorIs(t, e.auth.ResendVerification(context.Background(), ""), auth.ErrEmptyFields)
	require.ErrorIs(t, e.auth.ResendVerification(context.Background(), "not-an-email"), auth.ErrInvalidEmail)
}

func TestPurgeExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	stale, _ := e.register(t, "stale@example.com")

	e.clock.Advance(5 * time.Hour)
	fresh, _ := e.register(t, "fresh@example.com")

	verified, secret := e.register(t, "verified@example.com")
	require.NoError(t, e.auth.VerifyUser(ctx, verified.ID, secret))

	// a leftover token on a verified account must not take the account with it
	require.NoError(t, e.repo.SaveToken(ctx, models.VerificationToken{
		ID:        "leftover",
		AccountID: verified.ID,
		TokenHash: []byte("x"),
		CreatedAt: e.clock.Now(),
		ExpiresAt: e.clock.Now().Add(time.Minute),
	}))

	e.clock.Advance(2 * time.Hour)

	n, err := e.auth.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.repo.AccountByID(ctx, stale.ID)
	require.ErrorIs(t, err, storage.ErrAccountNotFound)

	_, err = e.repo.AccountByID(ctx, fresh.ID)
	require.NoError(t, err)

	_, err = e.repo.AccountByID(ctx, verified.ID)
	require.NoError(t, err)

	list, err := e.tokens.FindByAccount(ctx, verified.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err = e.auth.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentRegistration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, auth.ErrUserExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)
}

type failingIssue struct {
	*tokens.Store
}

func (failingIssue) Issue(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("token store unavailable")
}

func TestRegisterNewUser_IssueFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := auth.New(logger.Discard(), e.repo, failingIssue{e.tokens}, hasher.New(bcrypt.MinCost), e.outbox, auth.Settings{
		PublicURL:       testBaseURL,
		VerificationTTL: testTTL,
		SessionSecret:   testSecret,
	}).WithClock(e.clock.Now)

	acc, err := a.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.ErrorIs(t, err, auth.ErrInternal)
	assert.Empty(t, acc.ID)
	assert.Zero(t, e.outbox.count())

	_, err = e.repo.Account(ctx, testEmail)
	require.ErrorIs(t, err, storage.ErrAccountNotFound, "account without a token is removed")

	_, err = e.auth.RegisterNewUser(ctx, testName, testEmail, testPassword)
	require.NoError(t, err, "email is free for a retry")
}

// resendDuringPurge runs a resend right after the expired accounts have
// been listed.
type resendDuringPurge struct {
	*tokens.Store
	resend func()
}

func (r resendDuringPurge) ExpiredAccounts(ctx context.Context) ([]string, error) {
	ids, err := r.Store.ExpiredAccounts(ctx)
	if err == nil {
		r.resend()
	}
	return ids, err
}

func TestPurgeExpired_SkipsAccountResentMeanwhile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acc, _ := e.register(t, testEmail)
	e.clock.Advance(testTTL + time.Minute)

	store := &resendDuringPurge{Store: e.tokens}
	a := auth.New(logger.Discard(), e.repo, store, hasher.New(bcrypt.MinCost), e.outbox, auth.Settings{
		PublicURL:       testBaseURL,
		VerificationTTL: testTTL,
		SessionSecret:   testSecret,
	}).WithClock(e.clock.Now)
	store.resend = func() {
		require.NoError(t, a.ResendVerification(ctx, testEmail))
	}

	n, err := a.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = e.repo.AccountByID(ctx, acc.ID)
	require.NoError(t, err)

	_, secret := linkParts(t, e.outbox.last(t).Link)
	require.NoError(t, a.VerifyUser(ctx, acc.ID, secret), "fresh token survives the purge")
}
