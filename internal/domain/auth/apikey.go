package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKey is a named credential for the HTTP surface. Only the HMAC-SHA256
// hash of the key material is ever stored. Name doubles as the actor
// recorded in the order status ledger.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides lookup of active API keys by their hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
