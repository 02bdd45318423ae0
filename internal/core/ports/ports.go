package ports

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

// KeyExpander computes the match-keys a user or category currently covers.
type KeyExpander interface {
	ExpandKeys(ctx context.Context, subject domain.Subject) (mapset.Set[string], error)
	ExpandUser(ctx context.Context, user *domain.User) (mapset.Set[string], error)

	// Session returns an expander that caches product and category
	// expansions for its lifetime. Only valid while subscriptions and the
	// catalog are not being modified.
	Session() KeyExpander
}

// Notifier delivers one user's alerts for a report.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n domain.Notification) error
}
