package domain

import (
	"errors"
	"strings"
	"time"
)

// AuditAction names an operator-visible change.
type AuditAction string

const (
	ActionSubscribe       AuditAction = "SUBSCRIBE"
	ActionUnsubscribe     AuditAction = "UNSUBSCRIBE"
	ActionCategoryCreate  AuditAction = "CATEGORY_CREATED"
	ActionCategoryRename  AuditAction = "CATEGORY_RENAMED"
	ActionCategoryDelete  AuditAction = "CATEGORY_DELETED"
	ActionCategoryImport  AuditAction = "CATEGORY_IMPORT"
	ActionCycleTriggered  AuditAction = "CYCLE_TRIGGERED"
	ActionCatalogRepaired AuditAction = "CATALOG_REPAIRED"
	ActionInfo            AuditAction = "INFO"
)

var auditActions = []AuditAction{
	ActionSubscribe, ActionUnsubscribe,
	ActionCategoryCreate, ActionCategoryRename, ActionCategoryDelete, ActionCategoryImport,
	ActionCycleTriggered, ActionCatalogRepaired, ActionInfo,
}

var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingActor  = errors.New("audit entry needs an actor")
)

// ParseAuditAction accepts an action name in any case.
func ParseAuditAction(s string) (AuditAction, error) {
	a := AuditAction(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", ErrInvalidAction
	}
	return a, nil
}

func (a AuditAction) Valid() bool {
	for _, known := range auditActions {
		if a == known {
			return true
		}
	}
	return false
}

// AuditSource tells which surface triggered an action.
type AuditSource string

const (
	SourceAPI       AuditSource = "api"
	SourceCLI       AuditSource = "cli"
	SourceScheduler AuditSource = "scheduler"
	SourceSystem    AuditSource = "system"
)

// AuditLog is one audit entry. Target is "kind:id" of the affected resource.
type AuditLog struct {
	ID        uint        `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Action    AuditAction `json:"action"`
	Target    string      `json:"target"`
	Details   string      `json:"details,omitempty"`
	Source    AuditSource `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog validates and builds an audit entry.
func NewAuditLog(userID, username string, action AuditAction, target, details string, source AuditSource) (*AuditLog, error) {
	if userID == "" && username == "" {
		return nil, ErrMissingActor
	}
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	if source == "" {
		source = SourceSystem
	}
	return &AuditLog{
		UserID:    userID,
		Username:  username,
		Action:    action,
		Target:    target,
		Details:   details,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}, nil
}

// AuditFilter selects audit entries, newest first. Zero fields match all.
type AuditFilter struct {
	Action AuditAction
	UserID string
	// TargetPrefix matches targets such as "category:" or "vendor:<id>".
	TargetPrefix string
	Since        time.Time
	Limit        int
}

// Matches reports whether l passes every set field of f except Limit.
func (f AuditFilter) Matches(l AuditLog) bool {
	switch {
	case f.Action != "" && l.Action != f.Action:
		return false
	case f.UserID != "" && l.UserID != f.UserID:
		return false
	case f.TargetPrefix != "" && !strings.HasPrefix(l.Target, f.TargetPrefix):
		return false
	case !f.Since.IsZero() && l.Timestamp.Before(f.Since):
		return false
	}
	return true
}
