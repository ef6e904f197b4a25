package auth

import (
	"context"
	"log/slog"

	"learnhub/bounty-pipeline/internal/domain"
)

// Authorizer answers whether an identity has moderation authority.
type Authorizer interface {
	IsReviewer(ctx context.Context, id domain.Identity) bool
}

// RoleAuthorizer grants review rights to reviewer/admin roles and to an
// explicit wallet allow-list.
type RoleAuthorizer struct {
	wallets map[string]struct{}
}

// NewRoleAuthorizer builds the allow-list. Invalid entries are logged and skipped.
func NewRoleAuthorizer(reviewerWallets []string, logger *slog.Logger) *RoleAuthorizer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &RoleAuthorizer{wallets: make(map[string]struct{}, len(reviewerWallets))}
	for _, w := range reviewerWallets {
		norm, err := NormalizeWallet(w)
		if err != nil {
			logger.Warn("ignoring invalid reviewer wallet", "wallet", w)
			continue
		}
		a.wallets[norm] = struct{}{}
	}
	return a
}

func (a *RoleAuthorizer) IsReviewer(_ context.Context, id domain.Identity) bool {
	if id.HasRole(domain.RoleReviewer) || id.HasRole(domain.RoleAdmin) {
		return true
	}
	if id.Wallet == "" {
		return false
	}
	_, ok := a.wallets[id.Wallet]
	return ok
}
