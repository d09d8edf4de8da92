package auth

import (
	"context"
	"log/slog"

	"dm-lab/contract"
	"dm-lab/domain"
	"dm-lab/repositories"
)

// Resolver implements the hub's identity collaborator on top of JWT
// validation and the user directory. The hub trusts what comes out of
// here and never re-derives identity from message payloads.
type Resolver struct {
	users repositories.IUserRepository
	log   *slog.Logger
}

func NewResolver(users repositories.IUserRepository, log *slog.Logger) *Resolver {
	return &Resolver{users: users, log: log}
}

// Authenticate validates the connection token and resolves it to a
// known user. Any failure yields (zero, false): the caller fails closed
// and the connection never reaches the presence registry.
func (r *Resolver) Authenticate(ctx context.Context, cc contract.ConnContext) (domain.User, bool) {
	if cc.Token == "" {
		return domain.User{}, false
	}
	claims, err := ValidateToken(cc.Token)
	if err != nil {
		r.log.Debug("token validation failed", "connection_id", cc.ConnectionID, "error", err)
		return domain.User{}, false
	}
	if claims.Username == "" {
		return domain.User{}, false
	}

	// The token is trusted but the account must still exist: a deleted
	// user with a live token stays unauthenticated.
	user, err := r.users.GetUserByUsername(claims.Username)
	if err != nil {
		r.log.Debug("token for unknown user", "username", claims.Username)
		return domain.User{}, false
	}
	return user, true
}
