// Package sandbox provides in-memory implementations of the external
// collaborators (commerce platform, tax engine, accounting system, email
// sender) so the server can run end-to-end without live remotes. It backs
// local development and the black-box integration tests.
package sandbox

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
	"github.com/xenking/marketplace-postsubmit/internal/integration/accounting"
	"github.com/xenking/marketplace-postsubmit/internal/integration/tax"
	"github.com/xenking/marketplace-postsubmit/internal/platform"
)

// Platform is an in-memory platform.Client holding buyer worksheets and
// the supplier orders created by forwarding.
type Platform struct {
	mu sync.Mutex

	worksheets    map[string]*order.Worksheet
	supplierOrder map[string]*order.Order
	supplierLines map[string][]order.LineItem
	suppliers     map[string]order.Supplier
	payments      map[string][]order.Payment
	promotions    map[string][]order.Promotion
}

var _ platform.Client = (*Platform)(nil)

// NewPlatform creates an empty sandbox platform. Use Seed helpers or
// SeedDemo to populate it.
func NewPlatform() *Platform {
	return &Platform{
		worksheets:    make(map[string]*order.Worksheet),
		supplierOrder: make(map[string]*order.Order),
		supplierLines: make(map[string][]order.LineItem),
		suppliers:     make(map[string]order.Supplier),
		payments:      make(map[string][]order.Payment),
		promotions:    make(map[string][]order.Promotion),
	}
}

// SeedWorksheet stores a buyer worksheet.
func (p *Platform) SeedWorksheet(ws *order.Worksheet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.worksheets[ws.Order.ID] = ws
}

// SeedSupplier stores a supplier record.
func (p *Platform) SeedSupplier(s order.Supplier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suppliers[s.ID] = s
}

// SeedPayment registers a payment against a buyer order.
func (p *Platform) SeedPayment(orderID string, payment order.Payment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[orderID] = append(p.payments[orderID], payment)
}

// SeedPromotion registers an applied promotion.
func (p *Platform) SeedPromotion(orderID string, promo order.Promotion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.promotions[orderID] = append(p.promotions[orderID], promo)
}

// Forward splits the buyer order's line items by supplier and creates one
// outgoing order per supplier, mimicking the platform's forward call. A
// repeated forward returns fresh platform-assigned ids; the relationship
// patch is what moves them onto the stable derived naming.
func (p *Platform) Forward(ctx context.Context, _ order.Direction, orderID string) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ws, ok := p.worksheets[orderID]
	if !ok {
		return nil, platform.ErrNotFound
	}

	bySupplier := make(map[string][]order.LineItem)
	var supplierIDs []string
	for _, li := range ws.LineItems {
		if li.SupplierID == "" {
			continue
		}
		if _, seen := bySupplier[li.SupplierID]; !seen {
			supplierIDs = append(supplierIDs, li.SupplierID)
		}
		bySupplier[li.SupplierID] = append(bySupplier[li.SupplierID], li)
	}

	out := make([]order.Order, 0, len(supplierIDs))
	for _, supplierID := range supplierIDs {
		lines := bySupplier[supplierID]
		subtotal := decimal.Zero
		for _, li := range lines {
			subtotal = subtotal.Add(li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))))
		}
		so := order.Order{
			ID:            "FWD-" + uuid.NewString()[:8],
			FromCompanyID: ws.Order.ID,
			ToCompanyID:   supplierID,
			Subtotal:      subtotal,
			Total:         subtotal,
			Submitted:     true,
		}
		p.supplierOrder[so.ID] = &so
		p.supplierLines[so.ID] = append([]order.LineItem(nil), lines...)
		out = append(out, so)
	}

	zctx.From(ctx).Debug("Sandbox forwarded order",
		zap.String("order_id", orderID),
		zap.Int("supplier_orders", len(out)),
	)
	return out, nil
}

func (p *Platform) GetWorksheet(_ context.Context, _ order.Direction, orderID string) (*order.Worksheet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws, ok := p.worksheets[orderID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	cp := *ws
	cp.LineItems = append([]order.LineItem(nil), ws.LineItems...)
	return &cp, nil
}

func (p *Platform) GetOrder(_ context.Context, direction order.Direction, orderID string) (*order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if direction == order.Incoming {
		if ws, ok := p.worksheets[orderID]; ok {
			cp := ws.Order
			return &cp, nil
		}
		return nil, platform.ErrNotFound
	}
	if so, ok := p.supplierOrder[orderID]; ok {
		cp := *so
		return &cp, nil
	}
	return nil, platform.ErrNotFound
}

func (p *Platform) PatchOrder(_ context.Context, direction order.Direction, orderID string, patch platform.OrderPatch) (*order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var target *order.Order
	if direction == order.Incoming {
		ws, ok := p.worksheets[orderID]
		if !ok {
			return nil, platform.ErrNotFound
		}
		target = &ws.Order
	} else {
		so, ok := p.supplierOrder[orderID]
		if !ok {
			return nil, platform.ErrNotFound
		}
		target = so
	}

	if patch.ID != nil && *patch.ID != orderID {
		if direction != order.Outgoing {
			return nil, &platform.Error{StatusCode: 400, Code: "Validation", Message: "only outgoing orders can be renamed"}
		}
		delete(p.supplierOrder, orderID)
		p.supplierLines[*patch.ID] = p.supplierLines[orderID]
		delete(p.supplierLines, orderID)
		target.ID = *patch.ID
		p.supplierOrder[target.ID] = target
	}
	if patch.TaxCost != nil {
		target.TaxCost = *patch.TaxCost
		target.Total = target.Subtotal.Add(target.ShippingCost).Add(target.TaxCost)
	}
	if patch.XP != nil {
		applyXPPatch(&target.XP, patch.XP)
	}

	cp := *target
	return &cp, nil
}

func (p *Platform) ListLineItems(_ context.Context, direction order.Direction, orderID string) ([]order.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if direction == order.Incoming {
		ws, ok := p.worksheets[orderID]
		if !ok {
			return nil, platform.ErrNotFound
		}
		return append([]order.LineItem(nil), ws.LineItems...), nil
	}
	lines, ok := p.supplierLines[orderID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return append([]order.LineItem(nil), lines...), nil
}

func (p *Platform) PatchLineItem(_ context.Context, direction order.Direction, orderID, lineItemID string, patch platform.LineItemPatch) (*order.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lines []order.LineItem
	if direction == order.Incoming {
		ws, ok := p.worksheets[orderID]
		if !ok {
			return nil, platform.ErrNotFound
		}
		lines = ws.LineItems
	} else {
		var ok bool
		lines, ok = p.supplierLines[orderID]
		if !ok {
			return nil, platform.ErrNotFound
		}
	}

	for i := range lines {
		if lines[i].ID != lineItemID {
			continue
		}
		if patch.UnitPrice != nil {
			lines[i].UnitPrice = *patch.UnitPrice
		}
		if patch.ShipMethod != nil {
			lines[i].XP.ShipMethod = *patch.ShipMethod
		}
		cp := lines[i]
		return &cp, nil
	}
	return nil, platform.ErrNotFound
}

func (p *Platform) GetSupplier(_ context.Context, supplierID string) (*order.Supplier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.suppliers[supplierID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &s, nil
}

func (p *Platform) ListPayments(_ context.Context, _ order.Direction, orderID string) ([]order.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]order.Payment(nil), p.payments[orderID]...), nil
}

func (p *Platform) ListPromotions(_ context.Context, orderID string) ([]order.Promotion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]order.Promotion(nil), p.promotions[orderID]...), nil
}

func applyXPPatch(xp *order.XP, patch *platform.XPPatch) {
	if patch.OrderType != nil {
		xp.OrderType = *patch.OrderType
	}
	if patch.ClaimStatus != nil {
		xp.ClaimStatus = *patch.ClaimStatus
	}
	if patch.ShippingStatus != nil {
		xp.ShippingStatus = *patch.ShippingStatus
	}
	if patch.SubmittedStatus != nil {
		xp.SubmittedStatus = *patch.SubmittedStatus
	}
	if patch.SupplierIDs != nil {
		xp.SupplierIDs = patch.SupplierIDs
	}
	if patch.ShipFromAddressIDs != nil {
		xp.ShipFromAddressIDs = patch.ShipFromAddressIDs
	}
	if patch.NeedsAttention != nil {
		xp.NeedsAttention = *patch.NeedsAttention
	}
	if patch.StopShipSync != nil {
		xp.StopShipSync = *patch.StopShipSync
	}
	if patch.Currency != nil {
		xp.Currency = *patch.Currency
	}
	if patch.PaymentMethod != nil {
		xp.PaymentMethod = *patch.PaymentMethod
	}
	if patch.HasSellerProducts != nil {
		xp.HasSellerProducts = *patch.HasSellerProducts
	}
	if patch.ExternalTaxTransactionID != nil {
		xp.ExternalTaxTransactionID = *patch.ExternalTaxTransactionID
	}
	if patch.SelectedShipMethods != nil {
		xp.SelectedShipMethods = patch.SelectedShipMethods
	}
	if patch.ShippingAddress != nil {
		xp.ShippingAddress = patch.ShippingAddress
	}
	if patch.QuoteOrderInfo != nil {
		xp.QuoteOrderInfo = *patch.QuoteOrderInfo
	}
}

// Tax is an in-memory tax.Calculator applying a flat rate to the order
// subtotal.
type Tax struct {
	Rate decimal.Decimal
}

var _ tax.Calculator = (*Tax)(nil)

// NewTax creates a sandbox calculator with an 8.75% flat rate.
func NewTax() *Tax {
	return &Tax{Rate: decimal.RequireFromString("0.0875")}
}

func (t *Tax) CommitTransaction(_ context.Context, ws *order.Worksheet, promotions []order.Promotion) (tax.Calculation, error) {
	taxable := ws.Order.Subtotal
	for _, promo := range promotions {
		taxable = taxable.Sub(promo.Amount)
	}
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	return tax.Calculation{
		TotalTax:              taxable.Mul(t.Rate).Round(2),
		ExternalTransactionID: "TX-" + uuid.NewString()[:8],
	}, nil
}

// Accounting is an in-memory accounting.Service that enforces sales-order
// uniqueness by external reference, like the real system does.
type Accounting struct {
	mu          sync.Mutex
	salesOrders map[string]*accounting.SalesOrder // by reference
}

var _ accounting.Service = (*Accounting)(nil)

func NewAccounting() *Accounting {
	return &Accounting{salesOrders: make(map[string]*accounting.SalesOrder)}
}

func (a *Accounting) FindSalesOrderByRef(_ context.Context, reference string) (*accounting.SalesOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	so, ok := a.salesOrders[reference]
	if !ok {
		return nil, accounting.ErrNotFound
	}
	cp := *so
	return &cp, nil
}

func (a *Accounting) CreateSalesOrder(_ context.Context, ws *order.Worksheet) (*accounting.SalesOrder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.salesOrders[ws.Order.ID]; ok {
		return nil, errDuplicateReference(ws.Order.ID)
	}
	so := &accounting.SalesOrder{
		ID:        "SO-" + uuid.NewString()[:8],
		Reference: ws.Order.ID,
	}
	a.salesOrders[so.Reference] = so
	cp := *so
	return &cp, nil
}

func (a *Accounting) CreateOrUpdatePurchaseOrder(_ context.Context, so *accounting.SalesOrder, _ []order.Order) (*accounting.PurchaseOrder, error) {
	if so == nil || so.ID == "" {
		return nil, errors.New("sales order required")
	}
	return &accounting.PurchaseOrder{
		ID:        "PO-" + uuid.NewString()[:8],
		Reference: so.Reference,
	}, nil
}

func (a *Accounting) CreateShippingPurchaseOrder(_ context.Context, so *accounting.SalesOrder, _ *order.Worksheet) (*accounting.PurchaseOrder, error) {
	if so == nil || so.ID == "" {
		return nil, errors.New("sales order required")
	}
	return &accounting.PurchaseOrder{
		ID:        "POS-" + uuid.NewString()[:8],
		Reference: so.Reference,
	}, nil
}

func errDuplicateReference(ref string) error {
	return errors.Errorf("sales order already exists for reference %s", ref)
}

// Notifier is an in-memory notification.Sender recording every send.
type Notifier struct {
	mu   sync.Mutex
	sent []string
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SendOrderSubmitEmail(ctx context.Context, ws *order.Worksheet) error {
	n.mu.Lock()
	n.sent = append(n.sent, ws.Order.ID)
	n.mu.Unlock()

	zctx.From(ctx).Info("Sandbox order submit email",
		zap.String("order_id", ws.Order.ID),
	)
	return nil
}

// Sent returns the order ids emails were sent for.
func (n *Notifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}
