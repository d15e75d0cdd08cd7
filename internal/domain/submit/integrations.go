package submit

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
	"github.com/xenking/marketplace-postsubmit/internal/integration/accounting"
	"github.com/xenking/marketplace-postsubmit/internal/platform"
)

// runIntegrations runs the fixed post-forwarding sequence: notification,
// tax, accounting, shipping validation. Each action is individually
// isolated so one failing integration never prevents the others from
// running. Quote-derived orders stop after the notification.
func (c *Command) runIntegrations(ctx context.Context, ws *order.Worksheet, supplierOrders []order.Order) []ProcessResult {
	results := []ProcessResult{{
		Type: ProcessNotification,
		Actions: []ProcessResultAction{
			runStage(ctx, ProcessNotification, "Send order submit emails", func(ctx context.Context) error {
				return c.notifications.SendOrderSubmitEmail(ctx, ws)
			}),
		},
	}}

	if !ws.IsStandardOrder() {
		return results
	}

	results = append(results, ProcessResult{
		Type: ProcessTax,
		Actions: []ProcessResultAction{
			runStage(ctx, ProcessTax, "Commit tax transaction", func(ctx context.Context) error {
				return c.commitTaxTransaction(ctx, ws)
			}),
		},
	})

	if c.cfg.AccountingEnabled {
		results = append(results, c.runAccounting(ctx, ws, supplierOrders, false))
	}

	results = append(results, ProcessResult{
		Type: ProcessShipping,
		Actions: []ProcessResultAction{
			runStage(ctx, ProcessShipping, "Validate shipping", func(ctx context.Context) error {
				return c.validateShipping(ws)
			}),
		},
	})
	return results
}

// commitTaxTransaction commits the tax calculation with the external
// engine and stores the resulting total and transaction reference on the
// buyer order.
func (c *Command) commitTaxTransaction(ctx context.Context, ws *order.Worksheet) error {
	promotions, err := c.platform.ListPromotions(ctx, ws.Order.ID)
	if err != nil {
		return errors.Wrap(err, "list promotions")
	}

	calc, err := c.tax.CommitTransaction(ctx, ws, promotions)
	if err != nil {
		return errors.Wrap(err, "commit tax transaction")
	}

	taxCost := calc.TotalTax
	patch := platform.OrderPatch{
		TaxCost: &taxCost,
		XP:      &platform.XPPatch{ExternalTaxTransactionID: &calc.ExternalTransactionID},
	}
	if _, err := c.platform.PatchOrder(ctx, order.Incoming, ws.Order.ID, patch); err != nil {
		return errors.Wrap(err, "patch order tax cost")
	}
	return nil
}

// runAccounting mirrors the order into the accounting system: sales
// order, purchase order, shipping purchase order. The three calls are
// separate actions under one result; a failure in one does not stop the
// next from attempting. With checkExisting set (the retry path), an
// existing sales order for the same reference is reused instead of
// relying on the accounting system rejecting a duplicate.
func (c *Command) runAccounting(ctx context.Context, ws *order.Worksheet, supplierOrders []order.Order, checkExisting bool) ProcessResult {
	salesAction, salesOrder := runStageValue(ctx, ProcessAccounting, "Create accounting sales order",
		func(ctx context.Context) (accounting.SalesOrder, error) {
			if checkExisting {
				existing, err := c.accounting.FindSalesOrderByRef(ctx, ws.Order.ID)
				if err == nil {
					return *existing, nil
				}
				if !errors.Is(err, accounting.ErrNotFound) {
					return accounting.SalesOrder{}, errors.Wrap(err, "find sales order")
				}
			}
			so, err := c.accounting.CreateSalesOrder(ctx, ws)
			if err != nil {
				return accounting.SalesOrder{}, err
			}
			return *so, nil
		})

	poAction, _ := runStageValue(ctx, ProcessAccounting, "Create accounting purchase order",
		func(ctx context.Context) (accounting.PurchaseOrder, error) {
			po, err := c.accounting.CreateOrUpdatePurchaseOrder(ctx, &salesOrder, supplierOrders)
			if err != nil {
				return accounting.PurchaseOrder{}, err
			}
			return *po, nil
		})

	shippingAction, _ := runStageValue(ctx, ProcessAccounting, "Create accounting shipping purchase order",
		func(ctx context.Context) (accounting.PurchaseOrder, error) {
			po, err := c.accounting.CreateShippingPurchaseOrder(ctx, &salesOrder, ws)
			if err != nil {
				return accounting.PurchaseOrder{}, err
			}
			return *po, nil
		})

	return ProcessResult{
		Type:    ProcessAccounting,
		Actions: []ProcessResultAction{salesAction, poAction, shippingAction},
	}
}

// validateShipping inspects the shipping estimates computed at checkout.
// A non-200 estimate response failed outright; an estimate that resolved
// to the reserved no-rates sentinel means the order silently proceeded on
// a generic fallback rate, which is flagged for review when the policy is
// enabled. No remote call is made here.
func (c *Command) validateShipping(ws *order.Worksheet) error {
	if ws.ShipEstimateResponse.Status != 200 {
		return errors.Errorf("shipping estimate failed with status %d: %s",
			ws.ShipEstimateResponse.Status, ws.ShipEstimateResponse.ErrorBody)
	}
	if !c.cfg.FlagNoRateFallback {
		return nil
	}
	for _, est := range ws.ShipEstimateResponse.ShipEstimates {
		if est.SelectedShipMethodID == order.NoRatesID {
			return errors.Errorf("no shipping rates could be determined for estimate %s - fallback rate was used", est.ID)
		}
	}
	return nil
}
