package storage

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/lcalzada-xor/cvewatch/internal/core/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func toJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func fromJSON[T any](raw datatypes.JSON) T {
	var v T
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}

func vendorToDomain(m VendorModel) domain.Vendor {
	return domain.Vendor{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

// productToDomain expects the Vendor association to be loaded.
func productToDomain(m ProductModel) domain.Product {
	p := domain.Product{
		ID:        m.ID,
		VendorID:  m.VendorID,
		Vendor:    m.Vendor.Name,
		Name:      m.Name,
		Malformed: m.Malformed,
		CreatedAt: m.CreatedAt,
	}
	if !m.Dirty && !m.Malformed && len(m.Fields) > 0 {
		fields := fromJSON[domain.ProductFields](m.Fields)
		p.Fields = &fields
	}
	return p
}

func categoryToDomain(m CategoryModel) domain.Category {
	c := domain.Category{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
	for _, v := range m.Vendors {
		c.Vendors = append(c.Vendors, vendorToDomain(v))
	}
	for _, p := range m.Products {
		c.Products = append(c.Products, productToDomain(p))
	}
	return c
}

func userToDomain(m UserModel) domain.User {
	u := domain.User{ID: m.ID, Username: m.Username, Email: m.Email, CreatedAt: m.CreatedAt}
	for _, v := range m.Vendors {
		u.Vendors = append(u.Vendors, vendorToDomain(v))
	}
	for _, p := range m.Products {
		u.Products = append(u.Products, productToDomain(p))
	}
	for _, c := range m.Categories {
		u.Categories = append(u.Categories, domain.Category{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt})
	}
	return u
}

func cveToModel(c domain.CVE) CVEModel {
	m := CVEModel{
		ID:           c.ID,
		Summary:      c.Summary,
		CVSS2:        c.CVSS2,
		CVSS3:        c.CVSS3,
		MaxScore:     c.MaxScore(),
		CWEs:         toJSON(c.CWEs),
		References:   toJSON(c.References),
		CPEs:         toJSON(c.CPEs),
		PublishedAt:  c.PublishedAt,
		LastModified: c.LastModified,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if len(c.Raw) > 0 {
		m.Raw = datatypes.JSON(c.Raw)
	}
	return m
}

func cveToDomain(m CVEModel) domain.CVE {
	c := domain.CVE{
		CveSnapshot: domain.CveSnapshot{
			ID:           m.ID,
			Summary:      m.Summary,
			CVSS2:        m.CVSS2,
			CVSS3:        m.CVSS3,
			CWEs:         fromJSON[[]string](m.CWEs),
			References:   fromJSON[[]string](m.References),
			CPEs:         fromJSON[[]string](m.CPEs),
			PublishedAt:  m.PublishedAt,
			LastModified: m.LastModified,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Raw) > 0 {
		c.Raw = json.RawMessage(m.Raw)
	}
	if len(m.MatchKeys) > 0 {
		c.MatchKeys = make([]string, len(m.MatchKeys))
		for i, k := range m.MatchKeys {
			c.MatchKeys[i] = k.MatchKey
		}
	} else {
		c.MatchKeys = c.CveSnapshot.MatchKeys()
	}
	return c
}

func reportToModel(r domain.Report) ReportModel {
	return ReportModel{
		ID:              r.ID,
		Stage:           string(r.Stage),
		Status:          string(r.Status),
		FeedSince:       r.FeedSince,
		FeedUntil:       r.FeedUntil,
		RecordsFetched:  r.RecordsFetched,
		ChangesDetected: r.ChangesDetected,
		AlertsCreated:   r.AlertsCreated,
		Errors:          toJSON(r.Errors),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}

func reportToDomain(m ReportModel) domain.Report {
	return domain.Report{
		ID:              m.ID,
		Stage:           domain.Stage(m.Stage),
		Status:          domain.ReportStatus(m.Status),
		FeedSince:       m.FeedSince,
		FeedUntil:       m.FeedUntil,
		RecordsFetched:  m.RecordsFetched,
		ChangesDetected: m.ChangesDetected,
		AlertsCreated:   m.AlertsCreated,
		Errors:          fromJSON[[]string](m.Errors),
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
	}
}

func recordToDomain(m FeedRecordModel) domain.FeedRecord {
	return domain.FeedRecord{
		ID:        m.ID,
		ReportID:  m.ReportID,
		Snapshot:  fromJSON[domain.CveSnapshot](m.Snapshot),
		Processed: m.Processed,
	}
}

func changeToModel(c domain.Change) ChangeModel {
	return ChangeModel{
		ID:         c.ID,
		ReportID:   c.ReportID,
		CVEID:      c.CVEID,
		Events:     toJSON(c.Events),
		Dispatched: c.Dispatched,
		CreatedAt:  c.CreatedAt,
	}
}

func changeToDomain(m ChangeModel) domain.Change {
	return domain.Change{
		ID:         m.ID,
		ReportID:   m.ReportID,
		CVEID:      m.CVEID,
		Events:     fromJSON[[]domain.Event](m.Events),
		Dispatched: m.Dispatched,
		CreatedAt:  m.CreatedAt,
	}
}

func alertToModel(a domain.Alert) AlertModel {
	return AlertModel{
		ID:          a.ID,
		ReportID:    a.ReportID,
		UserID:      a.UserID,
		CVEID:       a.CVEID,
		ChangeID:    a.ChangeID,
		CreatedAt:   a.CreatedAt,
		DeliveredAt: a.DeliveredAt,
	}
}

func alertToDomain(m AlertModel) domain.Alert {
	return domain.Alert{
		ID:          m.ID,
		ReportID:    m.ReportID,
		UserID:      m.UserID,
		CVEID:       m.CVEID,
		ChangeID:    m.ChangeID,
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
	}
}

func auditLogToModel(l domain.AuditLog) AuditLogModel {
	return AuditLogModel{
		UserID:    l.UserID,
		Username:  l.Username,
		Action:    string(l.Action),
		Target:    l.Target,
		Details:   l.Details,
		Source:    string(l.Source),
		Timestamp: l.Timestamp,
	}
}

func auditLogToDomain(m AuditLogModel) domain.AuditLog {
	return domain.AuditLog{
		ID:        m.ID,
		UserID:    m.UserID,
		Username:  m.Username,
		Action:    domain.AuditAction(m.Action),
		Target:    m.Target,
		Details:   m.Details,
		Source:    domain.AuditSource(m.Source),
		Timestamp: m.Timestamp,
	}
}

// escapeLike quotes LIKE wildcards so s matches literally (escape char \).
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
