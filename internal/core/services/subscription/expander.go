package subscription

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/patrickmn/go-cache"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

const sessionTTL = 30 * time.Minute

// ProductExpander turns a followed product into the match-keys it covers.
type ProductExpander interface {
	Expand(ctx context.Context, product domain.Product) ([]string, error)
}

// Expander computes the flat set of vendor and vendor$PRODUCT$name keys a
// user or category covers. Categories are expanded one level deep.
type Expander struct {
	subs     ports.SubscriptionRepository
	products ProductExpander
	log      *logger.Logger

	// cache is nil outside a session.
	cache *cache.Cache
}

var _ ports.KeyExpander = (*Expander)(nil)

// NewExpander creates an expander resolving followed products through products.
func NewExpander(subs ports.SubscriptionRepository, products ProductExpander, log *logger.Logger) *Expander {
	return &Expander{
		subs:     subs,
		products: products,
		log:      log.Named("expander"),
	}
}

// Session returns an expander that memoizes product and category
// expansions. Use one per dispatch stage, while the subscription graph and
// catalog are read-only.
func (e *Expander) Session() ports.KeyExpander {
	return &Expander{
		subs:     e.subs,
		products: e.products,
		log:      e.log,
		cache:    cache.New(sessionTTL, 2*sessionTTL),
	}
}

// ExpandKeys loads the subject and expands it. An empty result means the
// subject matches nothing.
func (e *Expander) ExpandKeys(ctx context.Context, subject domain.Subject) (mapset.Set[string], error) {
	switch subject.Kind {
	case domain.SubjectUser:
		user, err := e.subs.GetUser(ctx, subject.ID)
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", subject.ID, err)
		}
		return e.ExpandUser(ctx, user)
	case domain.SubjectCategory:
		keys, err := e.categoryKeys(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		return mapset.NewSet(keys...), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSubject, subject.Kind)
}

// ExpandUser expands a user whose edges are already loaded.
func (e *Expander) ExpandUser(ctx context.Context, user *domain.User) (mapset.Set[string], error) {
	keys := mapset.NewSet[string]()
	if err := e.addMembers(ctx, keys, user.Vendors, user.Products); err != nil {
		return nil, fmt.Errorf("expand user %s: %w", user.ID, err)
	}
	for _, c := range user.Categories {
		catKeys, err := e.categoryKeys(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("expand user %s: %w", user.ID, err)
		}
		keys.Append(catKeys...)
	}
	return keys, nil
}

// ExpandCategory expands a category whose members are already loaded.
func (e *Expander) ExpandCategory(ctx context.Context, category *domain.Category) (mapset.Set[string], error) {
	keys := mapset.NewSet[string]()
	if err := e.addMembers(ctx, keys, category.Vendors, category.Products); err != nil {
		return nil, fmt.Errorf("expand category %s: %w", category.Name, err)
	}
	return keys, nil
}

func (e *Expander) categoryKeys(ctx context.Context, categoryID string) ([]string, error) {
	cacheKey := "category:" + categoryID
	if cached, ok := e.lookup(cacheKey); ok {
		return cached, nil
	}

	category, err := e.subs.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("load category %s: %w", categoryID, err)
	}
	set, err := e.ExpandCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	keys := set.ToSlice()
	e.store(cacheKey, keys)
	return keys, nil
}

func (e *Expander) addMembers(ctx context.Context, keys mapset.Set[string], vendors []domain.Vendor, products []domain.Product) error {
	for _, v := range vendors {
		keys.Add(v.Name)
	}
	for _, p := range products {
		expanded, err := e.productKeys(ctx, p)
		if err != nil {
			return err
		}
		keys.Append(expanded...)
	}
	return nil
}

func (e *Expander) productKeys(ctx context.Context, product domain.Product) ([]string, error) {
	cacheKey := "product:" + product.ID
	if cached, ok := e.lookup(cacheKey); ok {
		return cached, nil
	}
	keys, err := e.products.Expand(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("expand product %s: %w", product.Name, err)
	}
	e.store(cacheKey, keys)
	return keys, nil
}

func (e *Expander) lookup(key string) ([]string, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

func (e *Expander) store(key string, keys []string) {
	if e.cache != nil {
		e.cache.SetDefault(key, keys)
	}
}
