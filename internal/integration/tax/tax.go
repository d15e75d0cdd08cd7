// Package tax defines the boundary to the external tax engine.
package tax

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
)

// Calculation is the committed tax transaction result.
type Calculation struct {
	TotalTax decimal.Decimal
	// ExternalTransactionID references the committed transaction in the
	// tax engine, stored on the order for later adjustment or voiding.
	ExternalTransactionID string
}

// Calculator commits tax transactions against the external tax engine.
type Calculator interface {
	// CommitTransaction finalizes the tax calculation for a submitted
	// order, taking applied promotions into account.
	CommitTransaction(ctx context.Context, ws *order.Worksheet, promotions []order.Promotion) (Calculation, error)
}
