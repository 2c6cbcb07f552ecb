package domain

import (
	"slices"
	"time"
)

// WishList is a user's set of saved products. Entries reserve no stock.
type WishList struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProductIDs []string  `json:"product_ids"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsEmpty reports whether the wish list has no entries.
func (w *WishList) IsEmpty() bool {
	return len(w.ProductIDs) == 0
}

// Contains reports whether productID is listed.
func (w *WishList) Contains(productID string) bool {
	return slices.Contains(w.ProductIDs, productID)
}

// Add appends productID unless it is already listed. It reports whether the
// list changed.
func (w *WishList) Add(productID string) bool {
	if w.Contains(productID) {
		return false
	}
	w.ProductIDs = append(w.ProductIDs, productID)
	return true
}

// Remove drops productID and reports whether it was listed.
func (w *WishList) Remove(productID string) bool {
	i := slices.Index(w.ProductIDs, productID)
	if i < 0 {
		return false
	}
	w.ProductIDs = slices.Delete(w.ProductIDs, i, i+1)
	return true
}

// Clone returns a deep copy of the wish list.
func (w *WishList) Clone() *WishList {
	cp := *w
	cp.ProductIDs = slices.Clone(w.ProductIDs)
	return &cp
}
