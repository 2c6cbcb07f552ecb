package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies catalog products.
type Category string

const (
	CategorySmartPhone Category = "SMART_PHONE"
	CategoryTablet     Category = "TABLET"
	CategoryLaptop     Category = "LAPTOP"
	CategoryTV         Category = "TV"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{CategorySmartPhone, CategoryTablet, CategoryLaptop, CategoryTV}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, v := range Categories() {
		if v == c {
			return true
		}
	}
	return false
}

// Product is a catalog entry. StockQuantity is the number of units still
// available to reserve; it never goes below zero.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Category      Category        `json:"category"`
	ImageURL      string          `json:"image_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
