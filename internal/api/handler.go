// Package api exposes the post-submit pipeline over HTTP: the submit
// orchestration itself plus the targeted accounting and shipping retry
// endpoints operators use to clear flagged orders.
package api

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/marketplace-postsubmit/internal/domain/submit"
	"github.com/xenking/marketplace-postsubmit/internal/platform"
)

// Handler routes order lifecycle requests to the submit command.
type Handler struct {
	commands *submit.Command
}

// NewHandler constructs a Handler around the submit command.
func NewHandler(commands *submit.Command) *Handler {
	return &Handler{commands: commands}
}

// Routes registers the order endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders/{orderID}/submit", h.submitOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/accounting/retry", h.retryAccounting)
	mux.HandleFunc("POST /api/orders/{orderID}/shipping/validate", h.revalidateShipping)
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.commands.SubmitOrder)
}

func (h *Handler) retryAccounting(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.commands.RetryAccounting)
}

func (h *Handler) revalidateShipping(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.commands.RevalidateShipping)
}

// run executes one pipeline entry point and writes the aggregated result.
// The HTTP status mirrors the pipeline status, so a 500 body still carries
// the full per-stage breakdown.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*submit.OrderSubmitResponse, error)) {
	ctx := r.Context()
	orderID := r.PathValue("orderID")

	resp, err := fn(ctx, orderID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Pipeline entry failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		writeError(ctx, w, http.StatusBadGateway, err.Error())
		return
	}

	writeSubmitResponse(ctx, w, resp)
}
