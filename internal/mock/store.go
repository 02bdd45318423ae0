package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
	"github.com/lcalzada-xor/cvewatch/internal/core/ports"
)

// Store is an in-memory implementation of every storage port. It backs the
// service tests and the --mock mode.
type Store struct {
	mu sync.RWMutex

	vendors    map[string]domain.Vendor
	products   map[string]domain.Product
	users      map[string]*userEdges
	categories map[string]*categoryEdges
	cves       map[string]domain.CVE
	reports    map[string]domain.Report
	records    []domain.FeedRecord
	changes    map[string]domain.Change
	alerts     map[string]domain.Alert
	audit      []domain.AuditLog

	// FailUsers makes CreateAlert fail for the listed user IDs.
	FailUsers map[string]error
	// FailCVEs makes GetCVE fail for the listed CVE IDs.
	FailCVEs map[string]error
}

type userEdges struct {
	user       domain.User
	vendors    map[string]struct{}
	products   map[string]struct{}
	categories map[string]struct{}
}

type categoryEdges struct {
	category domain.Category
	vendors  map[string]struct{}
	products map[string]struct{}
}

var (
	_ ports.CatalogRepository      = (*Store)(nil)
	_ ports.SubscriptionRepository = (*Store)(nil)
	_ ports.CVERepository          = (*Store)(nil)
	_ ports.CycleStore             = (*Store)(nil)
	_ ports.AuditRepository        = (*Store)(nil)
	_ ports.Store                  = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		vendors:    make(map[string]domain.Vendor),
		products:   make(map[string]domain.Product),
		users:      make(map[string]*userEdges),
		categories: make(map[string]*categoryEdges),
		cves:       make(map[string]domain.CVE),
		reports:    make(map[string]domain.Report),
		changes:    make(map[string]domain.Change),
		alerts:     make(map[string]domain.Alert),
		FailUsers:  make(map[string]error),
		FailCVEs:   make(map[string]error),
	}
}

// Catalog

func (s *Store) UpsertProduct(ctx context.Context, vendor, name string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vendor = domain.NormalizeName(vendor)
	name = strings.TrimSpace(name)
	if vendor == "" || name == "" {
		return nil, domain.ErrEmptyName
	}
	p := s.upsertProduct(vendor, name)
	return &p, nil
}

// upsertProduct expects s.mu to be held for writing.
func (s *Store) upsertProduct(vendor, name string) domain.Product {
	var v domain.Vendor
	found := false
	for _, existing := range s.vendors {
		if existing.Name == vendor {
			v, found = existing, true
			break
		}
	}
	if !found {
		v = domain.Vendor{ID: uuid.NewString(), Name: vendor, CreatedAt: time.Now().UTC()}
		s.vendors[v.ID] = v
	}

	for _, p := range s.products {
		if p.VendorID == v.ID && p.Name == name {
			return p
		}
	}
	p := domain.Product{ID: uuid.NewString(), VendorID: v.ID, Vendor: v.Name, Name: name, CreatedAt: time.Now().UTC()}
	s.products[p.ID] = p
	return p
}

func (s *Store) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (s *Store) GetVendorByName(ctx context.Context, name string) (*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = domain.NormalizeName(name)
	for _, v := range s.vendors {
		if v.Name == name {
			cp := v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Name == name {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListProductFamily(ctx context.Context, vendorID, productName, afterID string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageProducts(afterID, limit, func(p domain.Product) bool {
		return p.VendorID == vendorID && p.Fields != nil && strings.EqualFold(p.Fields.ProductName, productName)
	}), nil
}

func (s *Store) ListDirtyProducts(ctx context.Context, vendorID, afterID string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageProducts(afterID, limit, func(p domain.Product) bool {
		return p.IsDirty() && (vendorID == "" || p.VendorID == vendorID)
	}), nil
}

func (s *Store) pageProducts(afterID string, limit int, keep func(domain.Product) bool) []domain.Product {
	var out []domain.Product
	for _, p := range s.products {
		if p.ID > afterID && keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) SaveProductFields(ctx context.Context, productID string, fields domain.ProductFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Fields = &fields
	p.Malformed = false
	s.products[productID] = p
	return nil
}

func (s *Store) MarkProductMalformed(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Malformed = true
	s.products[productID] = p
	return nil
}

func (s *Store) ListVendorNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.vendors))
	for _, v := range s.vendors {
		names = append(names, v.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ListProductNames(ctx context.Context, vendorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, p := range s.products {
		if p.VendorID == vendorID && p.Fields != nil {
			seen[p.Fields.ProductName] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Subscriptions

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.user.Username == user.Username {
			return domain.ErrUserExists
		}
	}
	user.Vendors, user.Products, user.Categories = nil, nil, nil
	s.users[user.ID] = &userEdges{
		user:       user,
		vendors:    make(map[string]struct{}),
		products:   make(map[string]struct{}),
		categories: make(map[string]struct{}),
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user := s.loadUser(u)
	return &user, nil
}

func (s *Store) GetUserByName(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.user.Username == username {
			user := s.loadUser(u)
			return &user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context, afterID string, limit int) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for id, u := range s.users {
		if id > afterID {
			out = append(out, s.loadUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) loadUser(u *userEdges) domain.User {
	user := u.user
	for _, id := range sortedKeys(u.vendors) {
		user.Vendors = append(user.Vendors, s.vendors[id])
	}
	for _, id := range sortedKeys(u.products) {
		user.Products = append(user.Products, s.products[id])
	}
	for _, id := range sortedKeys(u.categories) {
		user.Categories = append(user.Categories, s.categories[id].category)
	}
	return user
}

func (s *Store) editUser(userID string, fn func(*userEdges)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(u)
	return nil
}

func (s *Store) FollowVendor(ctx context.Context, userID, vendorID string) error {
	return s.editUser(userID, func(u *userEdges) { u.vendors[vendorID] = struct{}{} })
}

func (s *Store) UnfollowVendor(ctx context.Context, userID, vendorID string) error {
	return s.editUser(userID, func(u *userEdges) { delete(u.vendors, vendorID) })
}

func (s *Store) FollowProduct(ctx context.Context, userID, productID string) error {
	return s.editUser(userID, func(u *userEdges) { u.products[productID] = struct{}{} })
}

func (s *Store) UnfollowProduct(ctx context.Context, userID, productID string) error {
	return s.editUser(userID, func(u *userEdges) { delete(u.products, productID) })
}

func (s *Store) FollowCategory(ctx context.Context, userID, categoryID string) error {
	return s.editUser(userID, func(u *userEdges) { u.categories[categoryID] = struct{}{} })
}

func (s *Store) UnfollowCategory(ctx context.Context, userID, categoryID string) error {
	return s.editUser(userID, func(u *userEdges) { delete(u.categories, categoryID) })
}

func (s *Store) editCategory(categoryID string, fn func(*categoryEdges)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(c)
	return nil
}

func (s *Store) AddCategoryVendor(ctx context.Context, categoryID, vendorID string) error {
	return s.editCategory(categoryID, func(c *categoryEdges) { c.vendors[vendorID] = struct{}{} })
}

func (s *Store) RemoveCategoryVendor(ctx context.Context, categoryID, vendorID string) error {
	return s.editCategory(categoryID, func(c *categoryEdges) { delete(c.vendors, vendorID) })
}

func (s *Store) AddCategoryProduct(ctx context.Context, categoryID, productID string) error {
	return s.editCategory(categoryID, func(c *categoryEdges) { c.products[productID] = struct{}{} })
}

func (s *Store) RemoveCategoryProduct(ctx context.Context, categoryID, productID string) error {
	return s.editCategory(categoryID, func(c *categoryEdges) { delete(c.products, productID) })
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.category.Name == category.Name {
			return domain.ErrCategoryExists
		}
	}
	category.Vendors, category.Products = nil, nil
	s.categories[category.ID] = &categoryEdges{
		category: category,
		vendors:  make(map[string]struct{}),
		products: make(map[string]struct{}),
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cat := s.loadCategory(c)
	return &cat, nil
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name = domain.NormalizeName(name)
	for _, c := range s.categories {
		if c.category.Name == name {
			cat := s.loadCategory(c)
			return &cat, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c.category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) loadCategory(c *categoryEdges) domain.Category {
	cat := c.category
	for _, id := range sortedKeys(c.vendors) {
		cat.Vendors = append(cat.Vendors, s.vendors[id])
	}
	for _, id := range sortedKeys(c.products) {
		cat.Products = append(cat.Products, s.products[id])
	}
	return cat
}

func (s *Store) RenameCategory(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.ErrNotFound
	}
	for otherID, other := range s.categories {
		if otherID != id && other.category.Name == name {
			return domain.ErrCategoryExists
		}
	}
	c.category.Name = name
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.categories, id)
	for _, u := range s.users {
		delete(u.categories, id)
	}
	return nil
}

// CVEs

// PutCVE stores a CVE directly, bypassing the cycle.
func (s *Store) PutCVE(cve domain.CVE) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cve.MatchKeys) == 0 {
		cve.MatchKeys = cve.CveSnapshot.MatchKeys()
	}
	s.cves[cve.ID] = cve
}

func (s *Store) GetCVE(ctx context.Context, id string) (*domain.CVE, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.FailCVEs[id]; err != nil {
		return nil, err
	}
	c, ok := s.cves[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCVEs(ctx context.Context, ids []string) ([]domain.CVE, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CVE
	for _, id := range ids {
		if c, ok := s.cves[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) FindCVEs(ctx context.Context, q domain.CVEQuery) ([]domain.CVE, error) {
	if len(q.Keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(q.Keys))
	for _, k := range q.Keys {
		want[k] = struct{}{}
	}

	var out []domain.CVE
	for _, c := range s.cves {
		if !q.UpdatedAfter.IsZero() && !c.UpdatedAt.After(q.UpdatedAfter) {
			continue
		}
		if q.MinScore != nil {
			score := c.MaxScore()
			if score == nil || *score < *q.MinScore {
				continue
			}
		}
		for _, k := range c.MatchKeys {
			if _, ok := want[k]; ok {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Cycle journal

func (s *Store) CreateReport(ctx context.Context, report domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *Store) UpdateReport(ctx context.Context, report domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[report.ID]; !ok {
		return domain.ErrNotFound
	}
	s.reports[report.ID] = report
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (s *Store) LatestRunningReport(ctx context.Context) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Report
	for _, r := range s.reports {
		if !r.IsResumable() {
			continue
		}
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			cp := r
			latest = &cp
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (s *Store) ListReports(ctx context.Context, limit int) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FeedWatermark(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var mark time.Time
	for _, r := range s.reports {
		if r.Stage != domain.StageRefresh && r.FeedUntil.After(mark) {
			mark = r.FeedUntil
		}
	}
	return mark, nil
}

func (s *Store) CommitRefresh(ctx context.Context, report domain.Report, snapshots []domain.CveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[report.ID]; !ok {
		return domain.ErrNotFound
	}
	for _, snap := range snapshots {
		s.records = append(s.records, domain.FeedRecord{
			ID:       uint(len(s.records) + 1),
			ReportID: report.ID,
			Snapshot: snap,
		})
	}
	s.reports[report.ID] = report
	return nil
}

func (s *Store) ListPendingRecords(ctx context.Context, afterID uint, limit int) ([]domain.FeedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.FeedRecord
	for _, r := range s.records {
		if !r.Processed && r.ID > afterID {
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) ApplySnapshot(ctx context.Context, record domain.FeedRecord, change *domain.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if change != nil {
		s.changes[change.ID] = *change
	}

	snap := record.Snapshot
	existing, ok := s.cves[snap.ID]
	cve := domain.CVE{CveSnapshot: snap, MatchKeys: snap.MatchKeys(), CreatedAt: now, UpdatedAt: now}
	if ok {
		cve.CreatedAt = existing.CreatedAt
		if change == nil {
			cve.UpdatedAt = existing.UpdatedAt
		}
	}
	s.cves[snap.ID] = cve

	for _, uri := range snap.CPEs {
		vendor := domain.NormalizeName(domain.VendorOfCPE(uri))
		if name := strings.TrimSpace(uri); vendor != "" && name != "" {
			s.upsertProduct(vendor, name)
		}
	}

	for i := range s.records {
		if s.records[i].ID == record.ID {
			s.records[i].Processed = true
		}
	}
	return nil
}

func (s *Store) MarkRecordProcessed(ctx context.Context, recordID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == recordID {
			s.records[i].Processed = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) ListUndispatchedChanges(ctx context.Context, afterID string, limit int) ([]domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Change
	for _, c := range s.changes {
		if !c.Dispatched && c.ID > afterID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkChangeDispatched(ctx context.Context, changeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.changes[changeID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Dispatched = true
	s.changes[changeID] = c
	return nil
}

func (s *Store) GetChanges(ctx context.Context, ids []string) ([]domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Change
	for _, id := range ids {
		if c, ok := s.changes[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Changes returns every stored change.
func (s *Store) Changes() []domain.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Change, 0, len(s.changes))
	for _, c := range s.changes {
		out = append(out, c)
	}
	return out
}

func (s *Store) CreateAlert(ctx context.Context, alert domain.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailUsers[alert.UserID]; err != nil {
		return false, err
	}
	for _, a := range s.alerts {
		if a.UserID == alert.UserID && a.CVEID == alert.CVEID && a.ReportID == alert.ReportID {
			return false, nil
		}
	}
	s.alerts[alert.ID] = alert
	return true, nil
}

// Alerts returns every stored alert.
func (s *Store) Alerts() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID+out[i].CVEID < out[j].UserID+out[j].CVEID })
	return out
}

func (s *Store) ListUsersWithUndeliveredAlerts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, a := range s.alerts {
		if a.DeliveredAt == nil {
			seen[a.UserID] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (s *Store) ListUndeliveredAlerts(ctx context.Context, userID string) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.UserID == userID && a.DeliveredAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CVEID < out[j].CVEID })
	return out, nil
}

func (s *Store) MarkAlertsDelivered(ctx context.Context, alertIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range alertIDs {
		a, ok := s.alerts[id]
		if !ok {
			continue
		}
		t := at
		a.DeliveredAt = &t
		s.alerts[id] = a
	}
	return nil
}

// Audit

func (s *Store) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = uint(len(s.audit) + 1)
	s.audit = append(s.audit, log)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		if !filter.Matches(s.audit[i]) {
			continue
		}
		out = append(out, s.audit[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
