package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrMalformedCPE         = errors.New("malformed cpe name")
	ErrCategoryExists       = errors.New("category already exists")
	ErrUserExists           = errors.New("user already exists")
	ErrEmptyName            = errors.New("name cannot be empty")
	ErrNotFollowingCategory = errors.New("user does not follow category")
	ErrInvalidSubscription  = errors.New("invalid subscription target")
	ErrFeedUnavailable      = errors.New("cve feed unavailable")
	ErrInvalidSubject       = errors.New("invalid subject kind")
	ErrCycleInProgress      = errors.New("a cycle is already running")
)
