package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when no active key matches the presented hash.
var ErrUnauthorized = errors.New("unauthorized")

// Staff scopes gate the mutating workshop endpoints.
const (
	ScopeOrders = "manage_orders"
	ScopeLedger = "manage_ledger"
)

// APIKeyInfo holds the identity and permission data for a validated staff
// API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants the given scope.
func (i *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
