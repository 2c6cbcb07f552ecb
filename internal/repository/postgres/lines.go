package postgres

import (
	"context"
	"fmt"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
)

// lineOwner names the line_items column that points at the owning aggregate.
type lineOwner string

const (
	ownerCart  lineOwner = "cart_id"
	ownerOrder lineOwner = "order_id"
)

func (o lineOwner) selectQuery() string {
	return `
	SELECT id, product_id, quantity, unit_price
	FROM line_items
	WHERE ` + string(o) + ` = $1
	ORDER BY position ASC`
}

func (o lineOwner) insertQuery() string {
	return `
	INSERT INTO line_items (id, ` + string(o) + `, product_id, quantity, unit_price, position)
	VALUES ($1, $2, $3, $4, $5, $6)`
}

func (o lineOwner) deleteQuery() string {
	return `DELETE FROM line_items WHERE ` + string(o) + ` = $1`
}

func loadLines(ctx context.Context, db database.DBTX, owner lineOwner, ownerID string) (_ []domain.LineItem, err error) {
	query := owner.selectQuery()
	ctx, end := database.TraceQuery(ctx, "LoadLineItems", query)
	defer func() { end(err) }()

	rows, err := db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		var li domain.LineItem
		if err = rows.Scan(&li.ID, &li.ProductID, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan line item row: %w", err)
		}
		items = append(items, li)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line item rows: %w", err)
	}
	return items, nil
}

func insertLines(ctx context.Context, db database.DBTX, owner lineOwner, ownerID string, items []domain.LineItem) (err error) {
	query := owner.insertQuery()
	ctx, end := database.TraceQuery(ctx, "InsertLineItems", query)
	defer func() { end(err) }()

	for i, li := range items {
		if _, err = db.Exec(ctx, query, li.ID, ownerID, li.ProductID, li.Quantity, li.UnitPrice, i); err != nil {
			return fmt.Errorf("insert line item %s: %w", li.ProductID, err)
		}
	}
	return nil
}

func deleteLines(ctx context.Context, db database.DBTX, owner lineOwner, ownerID string) (err error) {
	query := owner.deleteQuery()
	ctx, end := database.TraceQuery(ctx, "DeleteLineItems", query)
	defer func() { end(err) }()

	if _, err = db.Exec(ctx, query, ownerID); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	return nil
}
