package submit

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
	"github.com/xenking/marketplace-postsubmit/internal/integration/accounting"
	"github.com/xenking/marketplace-postsubmit/internal/integration/notification"
	"github.com/xenking/marketplace-postsubmit/internal/integration/tax"
	"github.com/xenking/marketplace-postsubmit/internal/platform"
	"github.com/xenking/marketplace-postsubmit/pkg/throttler"
)

// Fan-out caps. Counts are bounded by suppliers on an order, so the caps
// stay small to respect platform rate limits.
const (
	supplierPatchLimit  = 5
	attentionPatchLimit = 3
	supplierLookupLimit = 10
)

// Config holds the orchestration policy switches.
type Config struct {
	// AccountingEnabled gates the accounting (ERP sync) stage.
	AccountingEnabled bool
	// FlagNoRateFallback treats an order that silently received the
	// generic fallback shipping rate as needing operator review. The
	// order already proceeded with a usable rate, so this is a policy
	// choice, not an integrity check.
	FlagNoRateFallback bool
}

// Command orchestrates everything that must happen after a buyer order is
// submitted. Stages run sequentially; fan-out within a stage is bounded.
// No stage failure ever escapes: the result of a run is always a
// structured OrderSubmitResponse.
type Command struct {
	platform      platform.Client
	tax           tax.Calculator
	accounting    accounting.Service
	notifications notification.Sender
	log           ResultLog
	cfg           Config
}

// NewCommand constructs the orchestrator with its external collaborators.
// A nil log disables result recording.
func NewCommand(
	pc platform.Client,
	taxCalc tax.Calculator,
	acct accounting.Service,
	sender notification.Sender,
	log ResultLog,
	cfg Config,
) *Command {
	if log == nil {
		log = NopResultLog{}
	}
	return &Command{
		platform:      pc,
		tax:           taxCalc,
		accounting:    acct,
		notifications: sender,
		log:           log,
		cfg:           cfg,
	}
}

// SubmitOrder runs the full post-submit pipeline for a buyer order:
// forwarding, then the integration stages, then finalization. A
// forwarding failure short-circuits the integrations, since they are
// meaningless without forwarded supplier orders.
//
// An error is returned only when the initial worksheet fetch fails;
// every failure past that point is captured inside the response.
func (c *Command) SubmitOrder(ctx context.Context, orderID string) (*OrderSubmitResponse, error) {
	ctx, span := startRun(ctx, "submit.order", orderID)
	defer span.End()

	ws, err := c.platform.GetWorksheet(ctx, order.Incoming, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get worksheet %s", orderID)
	}

	supplierOrders, refreshed, forwardingActions := c.runForwarding(ctx, ws)
	results := []ProcessResult{{
		Type:    ProcessForwarding,
		Actions: forwardingActions,
	}}

	for _, a := range forwardingActions {
		if !a.Success {
			// Forwarding failed; skip the integrations entirely.
			return c.finalize(ctx, results, []order.Order{ws.Order}), nil
		}
	}

	results = append(results, c.runIntegrations(ctx, refreshed, supplierOrders)...)

	affected := append([]order.Order{refreshed.Order}, supplierOrders...)
	return c.finalize(ctx, results, affected), nil
}

// RetryAccounting re-runs only the accounting stage against an already
// forwarded order. The supplier orders are found by their derived
// {orderID}-{supplierID} identifiers; forwarding is never repeated.
func (c *Command) RetryAccounting(ctx context.Context, orderID string) (*OrderSubmitResponse, error) {
	ctx, span := startRun(ctx, "submit.accounting_retry", orderID)
	defer span.End()

	ws, err := c.platform.GetWorksheet(ctx, order.Incoming, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get worksheet %s", orderID)
	}

	supplierIDs := ws.SupplierIDs()
	fetched, err := throttler.Run(ctx, supplierIDs, func(ctx context.Context, supplierID string) (*order.Order, error) {
		return c.platform.GetOrder(ctx, order.Outgoing, order.SupplierOrderID(orderID, supplierID))
	}, throttler.WithLimit(supplierLookupLimit))
	if err != nil {
		return nil, errors.Wrapf(err, "get supplier orders for %s", orderID)
	}

	supplierOrders := make([]order.Order, len(fetched))
	for i, so := range fetched {
		supplierOrders[i] = *so
	}

	result := c.runAccounting(ctx, ws, supplierOrders, true)

	affected := append([]order.Order{ws.Order}, supplierOrders...)
	return c.finalize(ctx, []ProcessResult{result}, affected), nil
}

// RevalidateShipping re-runs only the shipping validation against the
// current worksheet.
func (c *Command) RevalidateShipping(ctx context.Context, orderID string) (*OrderSubmitResponse, error) {
	ctx, span := startRun(ctx, "submit.shipping_revalidate", orderID)
	defer span.End()

	ws, err := c.platform.GetWorksheet(ctx, order.Incoming, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get worksheet %s", orderID)
	}

	result := ProcessResult{
		Type: ProcessShipping,
		Actions: []ProcessResultAction{
			runStage(ctx, ProcessShipping, "Validate shipping", func(ctx context.Context) error {
				return c.validateShipping(ws)
			}),
		},
	}

	return c.finalize(ctx, []ProcessResult{result}, []order.Order{ws.Order}), nil
}

// finalize flattens the run's results into the response status and
// recomputes the needs-attention flag on every affected order from the
// full result set. The buyer order is always patched first, supplier
// orders after. Patch failures are logged and surfaced in the response
// body but never change the already-determined status.
func (c *Command) finalize(ctx context.Context, results []ProcessResult, affected []order.Order) *OrderSubmitResponse {
	resp := &OrderSubmitResponse{
		Status:  200,
		Results: results,
	}
	if !allSucceeded(results) {
		resp.Status = 500
	}

	if err := c.updateNeedsAttention(ctx, affected, !resp.Succeeded()); err != nil {
		zctx.From(ctx).Error("Updating needs-attention flags failed",
			zap.Int("orders", len(affected)),
			zap.Error(err),
		)
		resp.UnhandledError = err.Error()
	}

	countRun(ctx, resp)

	if len(affected) > 0 {
		if err := c.log.Record(ctx, affected[0].ID, resp); err != nil {
			zctx.From(ctx).Warn("Recording submit result failed",
				zap.String("order_id", affected[0].ID),
				zap.Error(err),
			)
		}
	}
	return resp
}

// orderRef is one attention-flag patch target.
type orderRef struct {
	direction order.Direction
	id        string
}

// updateNeedsAttention patches the flag onto the buyer order (first
// element, incoming direction) and every supplier order (outgoing).
func (c *Command) updateNeedsAttention(ctx context.Context, orders []order.Order, needsAttention bool) error {
	if len(orders) == 0 {
		return nil
	}

	refs := make([]orderRef, 0, len(orders))
	refs = append(refs, orderRef{direction: order.Incoming, id: orders[0].ID})
	for _, o := range orders[1:] {
		refs = append(refs, orderRef{direction: order.Outgoing, id: o.ID})
	}

	patch := platform.OrderPatch{
		XP: &platform.XPPatch{NeedsAttention: &needsAttention},
	}
	return throttler.Do(ctx, refs, func(ctx context.Context, ref orderRef) error {
		_, err := c.platform.PatchOrder(ctx, ref.direction, ref.id, patch)
		return err
	}, throttler.WithLimit(attentionPatchLimit))
}
