package models

import "time"

type Account struct {
	ID         string
	Name       string
	Email      string
	PassHash   []byte
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PublicAccount is the caller-facing projection of an Account. It never
// carries the password hash.
type PublicAccount struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type VerificationToken struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	TokenHash []byte    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is past its expiry at now.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// Message is the payload handed to a notification publisher and carried
// over the mail queue.
type Message struct {
	Email   string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}

const PurposeEmailVerification = "email_verification"
