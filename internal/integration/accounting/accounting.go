// Package accounting defines the boundary to the external accounting
// system (ERP) that mirrors submitted orders as sales and purchase orders.
package accounting

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
)

// ErrNotFound is returned by FindSalesOrderByRef when no sales order
// exists for the given external reference.
var ErrNotFound = errors.New("accounting: sales order not found")

// SalesOrder is the accounting system's record of a buyer order.
type SalesOrder struct {
	ID string
	// Reference is the buyer order ID, used as the external uniqueness key.
	Reference string
}

// PurchaseOrder is the accounting system's record of supplier orders.
type PurchaseOrder struct {
	ID        string
	Reference string
}

// Service mirrors submitted orders into the accounting system.
type Service interface {
	// FindSalesOrderByRef looks up an existing sales order by its external
	// reference (the buyer order ID). Returns ErrNotFound when absent.
	// Retry paths check first rather than relying on the accounting
	// system rejecting duplicate references.
	FindSalesOrderByRef(ctx context.Context, reference string) (*SalesOrder, error)

	// CreateSalesOrder creates a sales order from the buyer worksheet.
	CreateSalesOrder(ctx context.Context, ws *order.Worksheet) (*SalesOrder, error)

	// CreateOrUpdatePurchaseOrder creates or updates the purchase order
	// tied to the sales order, one line set per forwarded supplier order.
	CreateOrUpdatePurchaseOrder(ctx context.Context, so *SalesOrder, supplierOrders []order.Order) (*PurchaseOrder, error)

	// CreateShippingPurchaseOrder creates the shipping-only purchase order
	// covering the freight cost of the buyer order.
	CreateShippingPurchaseOrder(ctx context.Context, so *SalesOrder, ws *order.Worksheet) (*PurchaseOrder, error)
}
