package enums

import "fmt"

// ProductStatus is the sale state of a listing.
type ProductStatus string

const (
	ProductStatusForSale  ProductStatus = "FOR_SALE"
	ProductStatusReserved ProductStatus = "RESERVED"
	ProductStatusSoldOut  ProductStatus = "SOLD_OUT"
)

var validProductStatuses = []ProductStatus{
	ProductStatusForSale,
	ProductStatusReserved,
	ProductStatusSoldOut,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

// ProductCategory represents the listing categories shown in the catalog.
type ProductCategory string

const (
	ProductCategoryElectronics ProductCategory = "ELECTRONICS"
	ProductCategoryFurniture   ProductCategory = "FURNITURE"
	ProductCategoryClothing    ProductCategory = "CLOTHING"
	ProductCategoryBooksMedia  ProductCategory = "BOOKS_MEDIA"
	ProductCategorySports      ProductCategory = "SPORTS"
	ProductCategoryLiving      ProductCategory = "LIVING"
	ProductCategoryBeauty      ProductCategory = "BEAUTY"
	ProductCategoryHobby       ProductCategory = "HOBBY"
	ProductCategoryOther       ProductCategory = "OTHER"
)

var validProductCategories = []ProductCategory{
	ProductCategoryElectronics,
	ProductCategoryFurniture,
	ProductCategoryClothing,
	ProductCategoryBooksMedia,
	ProductCategorySports,
	ProductCategoryLiving,
	ProductCategoryBeauty,
	ProductCategoryHobby,
	ProductCategoryOther,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}

// ProductCondition describes the wear of a listed item.
type ProductCondition string

const (
	ProductConditionNew     ProductCondition = "NEW"
	ProductConditionLikeNew ProductCondition = "LIKE_NEW"
	ProductConditionUsed    ProductCondition = "USED"
	ProductConditionWorn    ProductCondition = "WORN"
)

var validProductConditions = []ProductCondition{
	ProductConditionNew,
	ProductConditionLikeNew,
	ProductConditionUsed,
	ProductConditionWorn,
}

// String implements fmt.Stringer.
func (c ProductCondition) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCondition.
func (c ProductCondition) IsValid() bool {
	for _, candidate := range validProductConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCondition converts raw input into a ProductCondition.
func ParseProductCondition(value string) (ProductCondition, error) {
	for _, candidate := range validProductConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product condition %q", value)
}

// ProductCategoryValues lists every category in display order.
func ProductCategoryValues() []ProductCategory {
	return append([]ProductCategory(nil), validProductCategories...)
}

// ProductConditionValues lists every condition from newest to most worn.
func ProductConditionValues() []ProductCondition {
	return append([]ProductCondition(nil), validProductConditions...)
}
