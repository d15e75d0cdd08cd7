// Package platform defines the boundary to the commerce platform API: the
// operations the submit pipeline needs, the structured error shape remote
// failures surface as, and a client cache keyed by credential set.
package platform

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
)

// ErrNotFound is returned when a requested platform resource does not exist.
var ErrNotFound = errors.New("platform: resource not found")

// Error is a structured failure from the platform API.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Retryable reports whether the call that produced this error is worth
// repeating: rate limiting, timeouts, and server-side failures are;
// validation and auth errors are not.
func (e *Error) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// OrderPatch is a partial order update. Nil fields are left untouched.
type OrderPatch struct {
	// ID renames the order. Forwarding uses it to move supplier orders
	// onto the derived {buyerOrderID}-{supplierID} naming convention.
	ID      *string
	TaxCost *decimal.Decimal
	XP      *XPPatch
}

// XPPatch is a partial update of the order's extended properties.
// Nil fields are left untouched.
type XPPatch struct {
	OrderType                *order.Type
	ClaimStatus              *order.ClaimStatus
	ShippingStatus           *order.ShippingStatus
	SubmittedStatus          *order.SubmittedStatus
	SupplierIDs              []string
	ShipFromAddressIDs       []string
	NeedsAttention           *bool
	StopShipSync             *bool
	Currency                 *string
	PaymentMethod            *string
	HasSellerProducts        *bool
	ExternalTaxTransactionID *string
	SelectedShipMethods      []order.SelectedShipMethod
	ShippingAddress          *order.Address
	QuoteOrderInfo           *string
}

// LineItemPatch is a partial line item update. Nil fields are left untouched.
type LineItemPatch struct {
	UnitPrice  *decimal.Decimal
	ShipMethod *string
}

// Client is the subset of the commerce platform API the submit pipeline
// consumes. All operations are keyed by order direction: Incoming for the
// buyer-facing order, Outgoing for supplier orders.
type Client interface {
	// Forward splits a submitted buyer order into per-supplier orders and
	// returns the newly created outgoing orders.
	Forward(ctx context.Context, direction order.Direction, orderID string) ([]order.Order, error)

	// GetWorksheet returns one consistent read of the order, its line
	// items, and shipping estimates.
	GetWorksheet(ctx context.Context, direction order.Direction, orderID string) (*order.Worksheet, error)

	GetOrder(ctx context.Context, direction order.Direction, orderID string) (*order.Order, error)
	PatchOrder(ctx context.Context, direction order.Direction, orderID string, patch OrderPatch) (*order.Order, error)

	ListLineItems(ctx context.Context, direction order.Direction, orderID string) ([]order.LineItem, error)
	PatchLineItem(ctx context.Context, direction order.Direction, orderID, lineItemID string, patch LineItemPatch) (*order.LineItem, error)

	GetSupplier(ctx context.Context, supplierID string) (*order.Supplier, error)
	ListPayments(ctx context.Context, direction order.Direction, orderID string) ([]order.Payment, error)
	ListPromotions(ctx context.Context, orderID string) ([]order.Promotion, error)
}
