package pagination

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

const (
	// DefaultLimit is the catalog page size when a limit is not provided.
	DefaultLimit = 20
	// DefaultMessageLimit is the chat history page size.
	DefaultMessageLimit = 50
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Page is a validated offset page.
type Page struct {
	Page  int
	Limit int
}

// NewPage applies defaults to zero values and rejects anything outside
// 1..MaxLimit.
func NewPage(page, limit int) (Page, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "page must be >= 1")
	}
	l, err := Limit(limit, DefaultLimit)
	if err != nil {
		return Page{}, err
	}
	return Page{Page: page, Limit: l}, nil
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Limit returns def for a zero limit and rejects values outside 1..MaxLimit.
func Limit(limit, def int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	return limit, nil
}
