package products

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

func validatePublish(input PublishInput) error {
	switch {
	case input.AssetID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "asset_id is required")
	case strings.TrimSpace(input.Title) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case input.PriceCents < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be >= 0")
	case input.Category != nil && !input.Category.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	case input.Condition != nil && !input.Condition.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid condition")
	}
	return nil
}

// updateFields turns a PATCH body into column updates. Explicit nulls clear
// the column; a body with no fields is rejected.
func updateFields(input UpdateInput) (map[string]any, error) {
	fields := map[string]any{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		fields["title"] = title
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be >= 0")
		}
		fields["price_cents"] = *input.PriceCents
	}
	if input.Description.Valid {
		fields["description"] = input.Description.Value
	}
	if input.DimsComparison.Valid {
		fields["dims_comparison"] = input.DimsComparison.Value
	}
	if input.Category.Valid {
		if input.Category.Value == nil {
			fields["category"] = nil
		} else {
			c, err := enums.ParseProductCategory(*input.Category.Value)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
			}
			fields["category"] = c
		}
	}
	if input.Condition.Valid {
		if input.Condition.Value == nil {
			fields["condition"] = nil
		} else {
			c, err := enums.ParseProductCondition(*input.Condition.Value)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition")
			}
			fields["condition"] = c
		}
	}

	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	return fields, nil
}
