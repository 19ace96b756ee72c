// Package memory is a process-local store for accounts and verification
// tokens. It backs local development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"account_service/internal/models"
	"account_service/internal/storage"
)

type Repo struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	byEmail  map[string]string
	// tokens holds each account's tokens in insertion order.
	tokens map[string][]models.VerificationToken
}

func New() *Repo {
	return &Repo{
		accounts: make(map[string]models.Account),
		byEmail:  make(map[string]string),
		tokens:   make(map[string][]models.VerificationToken),
	}
}

func (r *Repo) SaveAccount(_ context.Context, acc models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[acc.Email]; ok {
		return storage.ErrAccountExists
	}

	acc.PassHash = slices.Clone(acc.PassHash)
	r.accounts[acc.ID] = acc
	r.byEmail[acc.Email] = acc.ID

	return nil
}

func (r *Repo) Account(_ context.Context, email string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}

	return r.accounts[id], nil
}

func (r *Repo) AccountByID(_ context.Context, id string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}

	return acc, nil
}

func (r *Repo) SetEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok || acc.IsVerified {
		return nil
	}

	acc.IsVerified = true
	acc.UpdatedAt = time.Now()
	r.accounts[id] = acc

	return nil
}

func (r *Repo) DeleteAccount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil
	}

	delete(r.byEmail, acc.Email)
	delete(r.accounts, id)
	delete(r.tokens, id)

	return nil
}

func (r *Repo) SaveToken(_ context.Context, token models.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token.AccountID] = append(r.tokens[token.AccountID], token)

	return nil
}

func (r *Repo) Tokens(_ context.Context, accountID string) ([]models.VerificationToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := slices.Clone(r.tokens[accountID])
	slices.Reverse(list)
	slices.SortStableFunc(list, func(a, b models.VerificationToken) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return list, nil
}

func (r *Repo) DeleteToken(_ context.Context, token models.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := slices.DeleteFunc(r.tokens[token.AccountID], func(t models.VerificationToken) bool {
		return t.ID == token.ID
	})
	if len(list) == 0 {
		delete(r.tokens, token.AccountID)
		return nil
	}
	r.tokens[token.AccountID] = list

	return nil
}

func (r *Repo) DeleteTokens(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, accountID)

	return nil
}

func (r *Repo) ExpiredAccountIDs(_ context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string

	for accountID, list := range r.tokens {
		if allExpired(list, now) {
			ids = append(ids, accountID)
		}
	}

	slices.Sort(ids)

	return ids, nil
}

func allExpired(list []models.VerificationToken, now time.Time) bool {
	if len(list) == 0 {
		return false
	}

	for i := range list {
		if !list[i].IsExpired(now) {
			return false
		}
	}

	return true
}
