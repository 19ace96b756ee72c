// Package hasher provides the one-way hash used for passwords and
// verification secrets.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxSecretLen is the longest input bcrypt accepts.
const MaxSecretLen = 72

type Bcrypt struct {
	cost int
}

// New returns a bcrypt hasher. A cost of zero selects bcrypt.DefaultCost.
func New(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(secret string) ([]byte, error) {
	const op = "hasher.Hash"

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return hash, nil
}

// Verify reports whether secret matches hashed. Malformed hashes count as a
// mismatch.
func (b *Bcrypt) Verify(secret string, hashed []byte) bool {
	return bcrypt.CompareHashAndPassword(hashed, []byte(secret)) == nil
}
