// Package notification defines the boundary to the transactional email
// service.
package notification

import (
	"context"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
)

// Sender delivers order lifecycle notifications.
type Sender interface {
	// SendOrderSubmitEmail sends the order confirmation emails for a
	// freshly submitted order (buyer confirmation plus seller/supplier
	// notifications).
	SendOrderSubmitEmail(ctx context.Context, ws *order.Worksheet) error
}
