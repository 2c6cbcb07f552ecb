package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a quantity of one product held by either a cart or an order.
// UnitPrice is the product price the line is totalled at.
type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal returns UnitPrice x Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ShoppingCart is a user's single cart. Every unit in Items is reserved
// against product stock.
type ShoppingCart struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsEmpty reports whether the cart has no lines.
func (c *ShoppingCart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItemIndex returns the index of the line for productID, or -1.
func (c *ShoppingCart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Recalculate sets TotalAmount to the sum of line subtotals.
func (c *ShoppingCart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalAmount = total
}

// ItemCount returns the number of units across all lines.
func (c *ShoppingCart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Empty drops every line and zeroes the total.
func (c *ShoppingCart) Empty() {
	c.Items = []LineItem{}
	c.TotalAmount = decimal.Zero
}

// Clone returns a deep copy of the cart.
func (c *ShoppingCart) Clone() *ShoppingCart {
	cp := *c
	cp.Items = append([]LineItem(nil), c.Items...)
	return &cp
}
