package hash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10

	// MaxBcryptInput is the longest input bcrypt accepts.
	MaxBcryptInput = 72
)

var ErrEmptyPassword = errors.New("empty password")

type Hasher struct {
	cost int
}

func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int { return h.cost }

// bcryptInput returns password unchanged when bcrypt can take it. Longer
// passwords are reduced to the base64 of their SHA-256 so every byte counts.
func bcryptInput(password string) []byte {
	if len(password) <= MaxBcryptInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Hash runs bcrypt on its own goroutine so a cancelled request stops waiting
// for it. The work itself cannot be interrupted.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		hash []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		b, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
		done <- result{hash: b, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		return string(r.hash), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *Hasher) Check(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}
