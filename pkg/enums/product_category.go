package enums

import "slices"

// ProductCategory groups catalog items for reporting and the storefront.
type ProductCategory string

const (
	ProductCategoryGas      ProductCategory = "gas"
	ProductCategoryWater    ProductCategory = "water"
	ProductCategoryBeverage ProductCategory = "beverage"
)

var validProductCategories = []ProductCategory{
	ProductCategoryGas,
	ProductCategoryWater,
	ProductCategoryBeverage,
}

// String implements fmt.Stringer.
func (p ProductCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductCategory.
func (p ProductCategory) IsValid() bool {
	return slices.Contains(validProductCategories, p)
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	return parse(value, validProductCategories, "product category")
}
