package storage

import (
	"time"

	"gorm.io/datatypes"
)

// VendorModel is the GORM model for vendors.
type VendorModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (VendorModel) TableName() string { return "vendors" }

// ProductModel is the GORM model for catalog products. Fields holds the
// decomposition as JSON and is empty while the product is dirty; Family
// is the lower-cased product name used for wildcard expansion.
type ProductModel struct {
	ID        string      `gorm:"primaryKey;size:36"`
	VendorID  string      `gorm:"size:36;not null;uniqueIndex:idx_products_vendor_name;index:idx_products_family,priority:1"`
	Vendor    VendorModel `gorm:"foreignKey:VendorID"`
	Name      string      `gorm:"not null;uniqueIndex:idx_products_vendor_name"`
	Family    string      `gorm:"index:idx_products_family,priority:2"`
	Fields    datatypes.JSON
	Dirty     bool `gorm:"index"`
	Malformed bool
	CreatedAt time.Time
}

func (ProductModel) TableName() string { return "products" }

// CategoryModel is the GORM model for categories and their members.
type CategoryModel struct {
	ID        string         `gorm:"primaryKey;size:36"`
	Name      string         `gorm:"uniqueIndex;not null"`
	Vendors   []VendorModel  `gorm:"many2many:categories_vendors;joinForeignKey:CategoryID;joinReferences:VendorID"`
	Products  []ProductModel `gorm:"many2many:categories_products;joinForeignKey:CategoryID;joinReferences:ProductID"`
	CreatedAt time.Time
}

func (CategoryModel) TableName() string { return "categories" }

// UserModel is the GORM model for subscribers and their subscription edges.
type UserModel struct {
	ID         string          `gorm:"primaryKey;size:36"`
	Username   string          `gorm:"uniqueIndex;not null"`
	Email      string
	Vendors    []VendorModel   `gorm:"many2many:users_vendors;joinForeignKey:UserID;joinReferences:VendorID"`
	Products   []ProductModel  `gorm:"many2many:users_products;joinForeignKey:UserID;joinReferences:ProductID"`
	Categories []CategoryModel `gorm:"many2many:users_categories;joinForeignKey:UserID;joinReferences:CategoryID"`
	CreatedAt  time.Time
}

func (UserModel) TableName() string { return "users" }

// Join rows of the many2many tables above, used for idempotent edge writes.
type userVendor struct {
	UserID   string `gorm:"primaryKey"`
	VendorID string `gorm:"primaryKey"`
}

type userProduct struct {
	UserID    string `gorm:"primaryKey"`
	ProductID string `gorm:"primaryKey"`
}

type userCategory struct {
	UserID     string `gorm:"primaryKey"`
	CategoryID string `gorm:"primaryKey"`
}

type categoryVendor struct {
	CategoryID string `gorm:"primaryKey"`
	VendorID   string `gorm:"primaryKey"`
}

type categoryProduct struct {
	CategoryID string `gorm:"primaryKey"`
	ProductID  string `gorm:"primaryKey"`
}

func (userVendor) TableName() string      { return "users_vendors" }
func (userProduct) TableName() string     { return "users_products" }
func (userCategory) TableName() string    { return "users_categories" }
func (categoryVendor) TableName() string  { return "categories_vendors" }
func (categoryProduct) TableName() string { return "categories_products" }

// CVEModel is the GORM model for stored CVEs.
type CVEModel struct {
	ID           string `gorm:"primaryKey;size:32"`
	Summary      string
	CVSS2        *float64
	CVSS3        *float64
	MaxScore     *float64 `gorm:"index"`
	CWEs         datatypes.JSON
	References   datatypes.JSON
	CPEs         datatypes.JSON
	Raw          datatypes.JSON
	PublishedAt  time.Time
	LastModified time.Time
	CreatedAt    time.Time
	// UpdatedAt only moves when a change is recorded.
	UpdatedAt time.Time          `gorm:"index;autoUpdateTime:false"`
	MatchKeys []CVEMatchKeyModel `gorm:"foreignKey:CVEID"`
}

func (CVEModel) TableName() string { return "cves" }

// CVEMatchKeyModel indexes a CVE under each of its match-keys.
type CVEMatchKeyModel struct {
	CVEID    string `gorm:"primaryKey;size:32"`
	MatchKey string `gorm:"primaryKey;index"`
}

func (CVEMatchKeyModel) TableName() string { return "cve_match_keys" }

// ReportModel is the journal row of a pipeline cycle.
type ReportModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	Stage           string `gorm:"index"`
	Status          string `gorm:"index"`
	FeedSince       time.Time
	FeedUntil       time.Time
	RecordsFetched  int
	ChangesDetected int
	AlertsCreated   int
	Errors          datatypes.JSON
	StartedAt       time.Time `gorm:"index"`
	FinishedAt      *time.Time
}

func (ReportModel) TableName() string { return "reports" }

// FeedRecordModel is a snapshot staged by the refresh stage.
type FeedRecordModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ReportID  string `gorm:"size:36;not null"`
	CVEID     string `gorm:"size:32"`
	Snapshot  datatypes.JSON
	Processed bool
}

func (FeedRecordModel) TableName() string { return "feed_records" }

// ChangeModel is a detected CVE change.
type ChangeModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	ReportID   string `gorm:"size:36;index"`
	CVEID      string `gorm:"size:32;index"`
	Events     datatypes.JSON
	Dispatched bool
	CreatedAt  time.Time
}

func (ChangeModel) TableName() string { return "changes" }

// AlertModel links a report, a CVE and a user. The unique index makes
// re-dispatching a change a no-op.
type AlertModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	ReportID    string `gorm:"size:36;not null;uniqueIndex:idx_alerts_once"`
	UserID      string `gorm:"size:36;not null;uniqueIndex:idx_alerts_once"`
	CVEID       string `gorm:"size:32;not null;uniqueIndex:idx_alerts_once"`
	ChangeID    string `gorm:"size:36"`
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

func (AlertModel) TableName() string { return "alerts" }

// AuditLogModel is the GORM model for audit entries.
type AuditLogModel struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	UserID    string
	Username  string
	Action    string `gorm:"index"`
	Target    string `gorm:"index"`
	Details   string
	Source    string
	Timestamp time.Time `gorm:"index"`
}

func (AuditLogModel) TableName() string { return "audit_logs" }
