package submit

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
	"github.com/xenking/marketplace-postsubmit/internal/integration/accounting"
	"github.com/xenking/marketplace-postsubmit/internal/integration/tax"
	"github.com/xenking/marketplace-postsubmit/internal/platform"
)

// --- Platform fake ---

type orderPatchCall struct {
	direction order.Direction
	orderID   string
	patch     platform.OrderPatch
}

type lineItemPatchCall struct {
	direction  order.Direction
	orderID    string
	lineItemID string
	patch      platform.LineItemPatch
}

// fakePlatform is an in-memory platform.Client with scriptable failures.
type fakePlatform struct {
	mu sync.Mutex

	worksheet  *order.Worksheet
	forwarded  []order.Order
	suppliers  map[string]order.Supplier
	orders     map[string]order.Order // supplier orders by current id
	payments   []order.Payment
	promotions []order.Promotion

	forwardErr      error
	getWorksheetErr error
	patchOrderErr   func(orderID string, patch platform.OrderPatch) error

	forwardCalls    int
	orderPatches    []orderPatchCall
	lineItemPatches []lineItemPatchCall
}

var _ platform.Client = (*fakePlatform)(nil)

func (p *fakePlatform) Forward(_ context.Context, _ order.Direction, _ string) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forwardCalls++
	if p.forwardErr != nil {
		return nil, p.forwardErr
	}
	out := make([]order.Order, len(p.forwarded))
	copy(out, p.forwarded)
	return out, nil
}

func (p *fakePlatform) GetWorksheet(_ context.Context, _ order.Direction, orderID string) (*order.Worksheet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getWorksheetErr != nil {
		return nil, p.getWorksheetErr
	}
	if p.worksheet == nil || p.worksheet.Order.ID != orderID {
		return nil, platform.ErrNotFound
	}
	ws := *p.worksheet
	return &ws, nil
}

func (p *fakePlatform) GetOrder(_ context.Context, _ order.Direction, orderID string) (*order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[orderID]; ok {
		return &o, nil
	}
	return nil, platform.ErrNotFound
}

func (p *fakePlatform) PatchOrder(_ context.Context, direction order.Direction, orderID string, patch platform.OrderPatch) (*order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.patchOrderErr != nil {
		if err := p.patchOrderErr(orderID, patch); err != nil {
			return nil, err
		}
	}
	p.orderPatches = append(p.orderPatches, orderPatchCall{direction: direction, orderID: orderID, patch: patch})

	o, ok := p.orders[orderID]
	if !ok {
		o = order.Order{ID: orderID}
	}
	if patch.ID != nil {
		delete(p.orders, orderID)
		o.ID = *patch.ID
	}
	if patch.XP != nil {
		if patch.XP.NeedsAttention != nil {
			o.XP.NeedsAttention = *patch.XP.NeedsAttention
		}
		if len(patch.XP.SupplierIDs) > 0 {
			o.XP.SupplierIDs = patch.XP.SupplierIDs
		}
	}
	p.orders[o.ID] = o
	return &o, nil
}

func (p *fakePlatform) ListLineItems(_ context.Context, _ order.Direction, _ string) ([]order.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]order.LineItem, len(p.worksheet.LineItems))
	copy(items, p.worksheet.LineItems)
	return items, nil
}

func (p *fakePlatform) PatchLineItem(_ context.Context, direction order.Direction, orderID, lineItemID string, patch platform.LineItemPatch) (*order.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lineItemPatches = append(p.lineItemPatches, lineItemPatchCall{
		direction:  direction,
		orderID:    orderID,
		lineItemID: lineItemID,
		patch:      patch,
	})
	return &order.LineItem{ID: lineItemID}, nil
}

func (p *fakePlatform) GetSupplier(_ context.Context, supplierID string) (*order.Supplier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.suppliers[supplierID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &s, nil
}

func (p *fakePlatform) ListPayments(_ context.Context, _ order.Direction, _ string) ([]order.Payment, error) {
	return p.payments, nil
}

func (p *fakePlatform) ListPromotions(_ context.Context, _ string) ([]order.Promotion, error) {
	return p.promotions, nil
}

// attentionPatches returns the needs-attention patches in call order.
func (p *fakePlatform) attentionPatches() []orderPatchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []orderPatchCall
	for _, call := range p.orderPatches {
		if call.patch.XP != nil && call.patch.XP.NeedsAttention != nil {
			out = append(out, call)
		}
	}
	return out
}

// --- Integration fakes ---

type fakeTax struct {
	calc tax.Calculation
	err  error

	calls int
}

func (f *fakeTax) CommitTransaction(_ context.Context, _ *order.Worksheet, _ []order.Promotion) (tax.Calculation, error) {
	f.calls++
	if f.err != nil {
		return tax.Calculation{}, f.err
	}
	return f.calc, nil
}

type fakeAccounting struct {
	existing       *accounting.SalesOrder
	createSOErr    error
	createPOErr    error
	createShipErr  error
	findCalls      int
	createSOCalls  int
	poSupplierSets [][]order.Order
	lastPOSales    *accounting.SalesOrder
}

func (f *fakeAccounting) FindSalesOrderByRef(_ context.Context, _ string) (*accounting.SalesOrder, error) {
	f.findCalls++
	if f.existing == nil {
		return nil, accounting.ErrNotFound
	}
	return f.existing, nil
}

func (f *fakeAccounting) CreateSalesOrder(_ context.Context, ws *order.Worksheet) (*accounting.SalesOrder, error) {
	f.createSOCalls++
	if f.createSOErr != nil {
		return nil, f.createSOErr
	}
	return &accounting.SalesOrder{ID: "SO-1", Reference: ws.Order.ID}, nil
}

func (f *fakeAccounting) CreateOrUpdatePurchaseOrder(_ context.Context, so *accounting.SalesOrder, supplierOrders []order.Order) (*accounting.PurchaseOrder, error) {
	f.lastPOSales = so
	f.poSupplierSets = append(f.poSupplierSets, supplierOrders)
	if f.createPOErr != nil {
		return nil, f.createPOErr
	}
	return &accounting.PurchaseOrder{ID: "PO-1", Reference: so.Reference}, nil
}

func (f *fakeAccounting) CreateShippingPurchaseOrder(_ context.Context, so *accounting.SalesOrder, _ *order.Worksheet) (*accounting.PurchaseOrder, error) {
	if f.createShipErr != nil {
		return nil, f.createShipErr
	}
	return &accounting.PurchaseOrder{ID: "PO-SHIP-1", Reference: so.Reference}, nil
}

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) SendOrderSubmitEmail(_ context.Context, _ *order.Worksheet) error {
	f.calls++
	return f.err
}

type captureLog struct {
	orderID string
	resp    *OrderSubmitResponse
}

func (c *captureLog) Record(_ context.Context, orderID string, resp *OrderSubmitResponse) error {
	c.orderID = orderID
	c.resp = resp
	return nil
}

// --- Fixtures ---

const (
	buyerOrderID = "ORD001"
	supplierA    = "SUP-A"
	supplierB    = "SUP-B"
)

// newTwoSupplierWorksheet builds a standard two-supplier order: one
// regular line for supplier A, one negotiated-quote line for supplier B,
// shipping estimates resolved for both.
func newTwoSupplierWorksheet() *order.Worksheet {
	ws := &order.Worksheet{
		Order: order.Order{
			ID:       buyerOrderID,
			Subtotal: decimal.RequireFromString("110.00"),
			Total:    decimal.RequireFromString("120.00"),
		},
		LineItems: []order.LineItem{
			{
				ID:                "li1",
				ProductID:         "prod-1",
				ProductType:       order.ProductStandard,
				SupplierID:        supplierA,
				ShipFromAddressID: "SUP-A-warehouse",
				Quantity:          2,
				UnitPrice:         decimal.RequireFromString("10.00"),
			},
			{
				ID:                "li2",
				ProductID:         "prod-2",
				ProductType:       order.ProductQuote,
				SupplierID:        supplierB,
				ShipFromAddressID: "SUP-B-warehouse",
				Quantity:          1,
				UnitPrice:         decimal.RequireFromString("90.00"),
			},
		},
		ShipEstimateResponse: order.ShipEstimateResponse{
			Status: 200,
			ShipEstimates: []order.ShipEstimate{
				{
					ID:                   "est-a",
					SupplierID:           supplierA,
					ShipFromAddressID:    "SUP-A-warehouse",
					SelectedShipMethodID: "sm-a1",
					ShipMethods: []order.ShipMethod{
						{ID: "sm-a1", Name: "FEDEX_GROUND", EstimatedTransitDays: 3},
						{ID: "sm-a2", Name: "FEDEX_OVERNIGHT", EstimatedTransitDays: 1},
					},
				},
				{
					ID:                   "est-b",
					SupplierID:           supplierB,
					ShipFromAddressID:    "SUP-B-warehouse",
					SelectedShipMethodID: "sm-b1",
					ShipMethods: []order.ShipMethod{
						{ID: "sm-b1", Name: "UPS_GROUND", EstimatedTransitDays: 4},
					},
				},
			},
		},
	}
	ws.Order.XP.OrderType = order.TypeStandard
	ws.Order.XP.ShippingAddress = &order.Address{
		ID:      "addr-1",
		Street1: "110 N Main St",
		City:    "Minneapolis",
		State:   "MN",
		Zip:     "55401",
		Country: "US",
	}
	return ws
}

// newFakePlatform wires a fakePlatform around the worksheet with two
// forwarded (not yet renamed) supplier orders.
func newFakePlatform(ws *order.Worksheet) *fakePlatform {
	return &fakePlatform{
		worksheet: ws,
		forwarded: []order.Order{
			{ID: "fwd-1", ToCompanyID: supplierA},
			{ID: "fwd-2", ToCompanyID: supplierB},
		},
		suppliers: map[string]order.Supplier{
			supplierA: {ID: supplierA, Name: "Supplier A", Currency: "USD"},
			supplierB: {ID: supplierB, Name: "Supplier B", Currency: "EUR"},
		},
		orders:   make(map[string]order.Order),
		payments: []order.Payment{{ID: "pay-1", Type: order.PaymentCreditCard}},
		promotions: []order.Promotion{
			{ID: "promo-1", Code: "SAVE10", Amount: decimal.RequireFromString("10.00")},
		},
	}
}

// newTestCommand assembles a Command over the given fakes with accounting
// enabled and the fallback-rate policy on.
func newTestCommand(p *fakePlatform, t *fakeTax, a *fakeAccounting, n *fakeNotifier, log ResultLog) *Command {
	return NewCommand(p, t, a, n, log, Config{
		AccountingEnabled:  true,
		FlagNoRateFallback: true,
	})
}

var errRemote = errors.New("remote call failed")
