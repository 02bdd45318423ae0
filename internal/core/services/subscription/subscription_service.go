package subscription

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
	"github.com/lcalzada-xor/cvewatch/internal/core/services/audit"
	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

// Service manages users, subscriptions and categories.
type Service struct {
	subs     ports.SubscriptionRepository
	catalog  ports.CatalogRepository
	cves     ports.CVERepository
	expander ports.KeyExpander
	audit    ports.AuditService
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates the subscription and category management service.
func NewService(
	subs ports.SubscriptionRepository,
	catalog ports.CatalogRepository,
	cves ports.CVERepository,
	expander ports.KeyExpander,
	auditSvc ports.AuditService,
	log *logger.Logger,
) *Service {
	return &Service{
		subs:     subs,
		catalog:  catalog,
		cves:     cves,
		expander: expander,
		audit:    auditSvc,
		log:      log.Named("subscriptions"),
		now:      time.Now,
	}
}

// CreateUser registers a subscriber.
func (s *Service) CreateUser(ctx context.Context, username, email string) (*domain.User, error) {
	user, err := domain.NewUser(uuid.NewString(), username, email)
	if err != nil {
		return nil, err
	}
	if err := s.subs.CreateUser(ctx, *user); err != nil {
		return nil, err
	}
	s.log.Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Subscribe adds the target to the user's subscriptions. Following
// something already followed is a no-op.
func (s *Service) Subscribe(ctx context.Context, userID string, target domain.SubscriptionTarget) error {
	user, err := s.subs.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if err := target.Accept(&subscribeHandler{ctx: ctx, svc: s, user: user}); err != nil {
		return err
	}
	s.record(ctx, *user, domain.ActionSubscribe, target)
	return nil
}

// Unsubscribe removes the target. Removing something not followed is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, userID string, target domain.SubscriptionTarget) error {
	user, err := s.subs.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if err := target.Accept(&unsubscribeHandler{ctx: ctx, svc: s, user: user}); err != nil {
		return err
	}
	s.record(ctx, *user, domain.ActionUnsubscribe, target)
	return nil
}

func (s *Service) record(ctx context.Context, user domain.User, action domain.AuditAction, target domain.SubscriptionTarget) {
	ref := fmt.Sprintf("%s:%s", target.Kind(), target.ID())
	if err := s.audit.Log(audit.WithActor(ctx, user), action, ref, ""); err != nil {
		s.log.Warn("audit log failed", "action", action, "target", ref, "error", err)
	}
	s.log.Info("subscription updated", "user_id", user.ID, "action", action, "target", ref)
}

// UserKeys returns what the user currently matches.
func (s *Service) UserKeys(ctx context.Context, userID string) (mapset.Set[string], error) {
	return s.expander.ExpandKeys(ctx, domain.UserSubject(userID))
}

// CategoryKeys returns what the named category currently matches.
func (s *Service) CategoryKeys(ctx context.Context, name string) (mapset.Set[string], error) {
	category, err := s.subs.GetCategoryByName(ctx, domain.NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", name, err)
	}
	return s.expander.ExpandKeys(ctx, domain.CategorySubject(category.ID))
}

type subscribeHandler struct {
	ctx  context.Context
	svc  *Service
	user *domain.User
}

func (h *subscribeHandler) VisitVendor(t domain.VendorTarget) error {
	if _, err := h.svc.catalog.GetVendor(h.ctx, t.VendorID); err != nil {
		return fmt.Errorf("vendor %s: %w", t.VendorID, err)
	}
	return h.svc.subs.FollowVendor(h.ctx, h.user.ID, t.VendorID)
}

func (h *subscribeHandler) VisitProduct(t domain.ProductTarget) error {
	if _, err := h.svc.catalog.GetProduct(h.ctx, t.ProductID); err != nil {
		return fmt.Errorf("product %s: %w", t.ProductID, err)
	}
	return h.svc.subs.FollowProduct(h.ctx, h.user.ID, t.ProductID)
}

func (h *subscribeHandler) VisitCategory(t domain.CategoryTarget) error {
	if _, err := h.svc.subs.GetCategory(h.ctx, t.CategoryID); err != nil {
		return fmt.Errorf("category %s: %w", t.CategoryID, err)
	}
	return h.svc.subs.FollowCategory(h.ctx, h.user.ID, t.CategoryID)
}

func (h *subscribeHandler) VisitCategoryProduct(t domain.CategoryProductTarget) error {
	if !h.user.FollowsCategory(t.CategoryID) {
		return domain.ErrNotFollowingCategory
	}
	if _, err := h.svc.catalog.GetProduct(h.ctx, t.ProductID); err != nil {
		return fmt.Errorf("product %s: %w", t.ProductID, err)
	}
	return h.svc.subs.AddCategoryProduct(h.ctx, t.CategoryID, t.ProductID)
}

func (h *subscribeHandler) VisitCategoryVendor(t domain.CategoryVendorTarget) error {
	if !h.user.FollowsCategory(t.CategoryID) {
		return domain.ErrNotFollowingCategory
	}
	if _, err := h.svc.catalog.GetVendor(h.ctx, t.VendorID); err != nil {
		return fmt.Errorf("vendor %s: %w", t.VendorID, err)
	}
	return h.svc.subs.AddCategoryVendor(h.ctx, t.CategoryID, t.VendorID)
}

type unsubscribeHandler struct {
	ctx  context.Context
	svc  *Service
	user *domain.User
}

func (h *unsubscribeHandler) VisitVendor(t domain.VendorTarget) error {
	return h.svc.subs.UnfollowVendor(h.ctx, h.user.ID, t.VendorID)
}

func (h *unsubscribeHandler) VisitProduct(t domain.ProductTarget) error {
	return h.svc.subs.UnfollowProduct(h.ctx, h.user.ID, t.ProductID)
}

func (h *unsubscribeHandler) VisitCategory(t domain.CategoryTarget) error {
	return h.svc.subs.UnfollowCategory(h.ctx, h.user.ID, t.CategoryID)
}

func (h *unsubscribeHandler) VisitCategoryProduct(t domain.CategoryProductTarget) error {
	if !h.user.FollowsCategory(t.CategoryID) {
		return domain.ErrNotFollowingCategory
	}
	return h.svc.subs.RemoveCategoryProduct(h.ctx, t.CategoryID, t.ProductID)
}

func (h *unsubscribeHandler) VisitCategoryVendor(t domain.CategoryVendorTarget) error {
	if !h.user.FollowsCategory(t.CategoryID) {
		return domain.ErrNotFollowingCategory
	}
	return h.svc.subs.RemoveCategoryVendor(h.ctx, t.CategoryID, t.VendorID)
}
