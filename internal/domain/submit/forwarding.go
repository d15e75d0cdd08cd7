package submit

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
	"github.com/xenking/marketplace-postsubmit/internal/platform"
	"github.com/xenking/marketplace-postsubmit/pkg/throttler"
)

// runForwarding splits the buyer order into supplier orders and wires the
// cross-references between them. It returns the updated supplier orders,
// the refreshed worksheet, and one action per forwarding step. When the
// forward call itself fails the remaining steps are skipped; nothing
// exists to reference.
func (c *Command) runForwarding(ctx context.Context, ws *order.Worksheet) ([]order.Order, *order.Worksheet, []ProcessResultAction) {
	forwardAction, forwardedOrders := runStageValue(ctx, ProcessForwarding, "Forward order to suppliers",
		func(ctx context.Context) ([]order.Order, error) {
			return c.platform.Forward(ctx, order.Incoming, ws.Order.ID)
		})
	if !forwardAction.Success {
		return nil, ws, []ProcessResultAction{forwardAction}
	}

	// The platform has no native notion of "this buyer order was forwarded
	// to supplier order X"; the relationship lives in extended properties
	// written here.
	relationshipAction, supplierOrders := runStageValue(ctx, ProcessForwarding, "Create order relationships",
		func(ctx context.Context) ([]order.Order, error) {
			return c.createOrderRelationships(ctx, ws, forwardedOrders)
		})

	// Forwarding and the relationship patches changed platform state the
	// caller's snapshot does not reflect; downstream stages need a fresh read.
	refreshAction, refreshed := runStageValue(ctx, ProcessForwarding, "Refresh order worksheet",
		func(ctx context.Context) (*order.Worksheet, error) {
			return c.platform.GetWorksheet(ctx, order.Incoming, ws.Order.ID)
		})
	if refreshed == nil {
		refreshed = ws
	}

	actions := []ProcessResultAction{forwardAction, relationshipAction, refreshAction}
	return supplierOrders, refreshed, actions
}

// createOrderRelationships patches every supplier order with its
// cross-reference fields, propagates ship methods and negotiated prices
// onto line items, and finally patches the buyer order with its
// aggregates. Per-supplier patches fan out through the executor; the
// count is bounded by the number of suppliers on the order.
func (c *Command) createOrderRelationships(ctx context.Context, ws *order.Worksheet, forwarded []order.Order) ([]order.Order, error) {
	payments, err := c.platform.ListPayments(ctx, order.Incoming, ws.Order.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}

	lineItems, err := c.platform.ListLineItems(ctx, order.Incoming, ws.Order.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list line items")
	}
	shipFromAddressIDs := distinctShipFromAddressIDs(lineItems)

	supplierOrders, err := throttler.Run(ctx, forwarded, func(ctx context.Context, so order.Order) (order.Order, error) {
		return c.patchSupplierOrder(ctx, ws, so, lineItems, shipFromAddressIDs)
	}, throttler.WithLimit(supplierPatchLimit))
	if err != nil {
		return nil, errors.Wrap(err, "patch supplier orders")
	}

	if err := c.patchBuyerOrder(ctx, ws, forwarded, lineItems, shipFromAddressIDs, payments); err != nil {
		return nil, errors.Wrap(err, "patch buyer order")
	}
	return supplierOrders, nil
}

// patchSupplierOrder establishes one supplier order's cross-references and
// updates that supplier's line items.
func (c *Command) patchSupplierOrder(ctx context.Context, ws *order.Worksheet, so order.Order, lineItems []order.LineItem, shipFromAddressIDs []string) (order.Order, error) {
	supplier, err := c.platform.GetSupplier(ctx, so.ToCompanyID)
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "get supplier %s", so.ToCompanyID)
	}

	var supplierShipFroms []string
	for _, addrID := range shipFromAddressIDs {
		if strings.Contains(addrID, supplier.ID) {
			supplierShipFroms = append(supplierShipFroms, addrID)
		}
	}

	selected := selectedShipMethods(ws.ShipEstimateResponse.ShipEstimates, supplier.ID)

	derivedID := order.SupplierOrderID(ws.Order.ID, supplier.ID)
	claim := order.ClaimNone
	shipping := order.ShippingProcessing
	submitted := order.SubmittedOpen
	stopSync := false
	patch := platform.OrderPatch{
		// The derived id is stable, so a repeated forwarding run patches
		// the same supplier order instead of spawning a duplicate.
		ID: &derivedID,
		XP: &platform.XPPatch{
			OrderType:           &ws.Order.XP.OrderType,
			QuoteOrderInfo:      &ws.Order.XP.QuoteOrderInfo,
			SupplierIDs:         []string{supplier.ID},
			ShipFromAddressIDs:  supplierShipFroms,
			Currency:            &supplier.Currency,
			ClaimStatus:         &claim,
			ShippingStatus:      &shipping,
			SubmittedStatus:     &submitted,
			StopShipSync:        &stopSync,
			SelectedShipMethods: selected,
			// Snapshotted so the purchase order detail report does not
			// need the buyer order.
			ShippingAddress: ws.Order.XP.ShippingAddress,
		},
	}
	updated, err := c.platform.PatchOrder(ctx, order.Outgoing, so.ID, patch)
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "patch supplier order %s", so.ID)
	}

	var supplierLines []order.LineItem
	for _, li := range lineItems {
		if li.SupplierID == supplier.ID {
			supplierLines = append(supplierLines, li)
		}
	}

	if err := c.saveShipMethodByLineItem(ctx, ws.Order.ID, supplierLines, selected); err != nil {
		return order.Order{}, err
	}
	if err := c.overrideQuoteUnitPrices(ctx, updated.ID, supplierLines); err != nil {
		return order.Order{}, err
	}
	return *updated, nil
}

// patchBuyerOrder writes the post-forwarding aggregates onto the buyer order.
func (c *Command) patchBuyerOrder(ctx context.Context, ws *order.Worksheet, forwarded []order.Order, lineItems []order.LineItem, shipFromAddressIDs []string, payments []order.Payment) error {
	supplierIDs := make([]string, 0, len(forwarded))
	for _, so := range forwarded {
		supplierIDs = append(supplierIDs, so.ToCompanyID)
	}

	hasSellerProducts := false
	for _, li := range lineItems {
		if li.SupplierID == "" {
			hasSellerProducts = true
			break
		}
	}

	paymentMethod := "Purchase Order"
	if len(payments) > 0 && payments[0].Type == order.PaymentCreditCard {
		paymentMethod = "Credit Card"
	}

	claim := order.ClaimNone
	shipping := order.ShippingProcessing
	submitted := order.SubmittedOpen
	patch := platform.OrderPatch{
		XP: &platform.XPPatch{
			ShipFromAddressIDs: shipFromAddressIDs,
			SupplierIDs:        supplierIDs,
			ClaimStatus:        &claim,
			ShippingStatus:     &shipping,
			SubmittedStatus:    &submitted,
			HasSellerProducts:  &hasSellerProducts,
			PaymentMethod:      &paymentMethod,
			// Seller-fulfilled estimates carry no supplier id; their
			// selected methods live on the buyer order.
			SelectedShipMethods: selectedShipMethods(ws.ShipEstimateResponse.ShipEstimates, ""),
		},
	}
	_, err := c.platform.PatchOrder(ctx, order.Incoming, ws.Order.ID, patch)
	return err
}

// saveShipMethodByLineItem stores the human-readable selected ship method
// name on each buyer line item that has no ship-from address override.
func (c *Command) saveShipMethodByLineItem(ctx context.Context, buyerOrderID string, lineItems []order.LineItem, methods []order.SelectedShipMethod) error {
	if len(methods) == 0 {
		return nil
	}
	for _, li := range lineItems {
		if li.ShipFromAddressID != "" {
			continue
		}
		for _, m := range methods {
			if m.ShipFromAddressID != li.ShipFromAddressID {
				continue
			}
			readable := strings.ReplaceAll(m.Name, "_", " ")
			patch := platform.LineItemPatch{ShipMethod: &readable}
			if _, err := c.platform.PatchLineItem(ctx, order.Incoming, buyerOrderID, li.ID, patch); err != nil {
				return errors.Wrapf(err, "patch line item %s ship method", li.ID)
			}
			break
		}
	}
	return nil
}

// overrideQuoteUnitPrices re-applies negotiated quote prices onto the
// supplier-side line item copies. The platform's forward operation does
// not carry negotiated pricing across.
func (c *Command) overrideQuoteUnitPrices(ctx context.Context, supplierOrderID string, lineItems []order.LineItem) error {
	for _, li := range lineItems {
		if li.ProductType != order.ProductQuote {
			continue
		}
		price := li.UnitPrice
		patch := platform.LineItemPatch{UnitPrice: &price}
		if _, err := c.platform.PatchLineItem(ctx, order.Outgoing, supplierOrderID, li.ID, patch); err != nil {
			return errors.Wrapf(err, "override quote price on line item %s", li.ID)
		}
	}
	return nil
}

// selectedShipMethods maps the estimates scoped to one supplier (or to the
// seller when supplierID is empty) into the supplier-facing view of the
// methods the buyer selected.
func selectedShipMethods(estimates []order.ShipEstimate, supplierID string) []order.SelectedShipMethod {
	var out []order.SelectedShipMethod
	for _, est := range estimates {
		if est.SupplierID != supplierID {
			continue
		}
		for _, sm := range est.ShipMethods {
			if sm.ID != est.SelectedShipMethodID {
				continue
			}
			out = append(out, order.SelectedShipMethod{
				Name:                 sm.Name,
				EstimatedTransitDays: sm.EstimatedTransitDays,
				ShipFromAddressID:    est.ShipFromAddressID,
			})
			break
		}
	}
	return out
}

// distinctShipFromAddressIDs collects the distinct non-empty ship-from
// address ids across the order's line items, in first-seen order.
func distinctShipFromAddressIDs(lineItems []order.LineItem) []string {
	seen := make(map[string]struct{}, 4)
	var ids []string
	for _, li := range lineItems {
		if li.ShipFromAddressID == "" {
			continue
		}
		if _, ok := seen[li.ShipFromAddressID]; ok {
			continue
		}
		seen[li.ShipFromAddressID] = struct{}{}
		ids = append(ids, li.ShipFromAddressID)
	}
	return ids
}
