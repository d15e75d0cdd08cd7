// Package order defines the marketplace order model shared by the submit
// pipeline: buyer and supplier orders, line items, shipping estimates, and
// the worksheet that bundles them into one consistent read.
package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction distinguishes the two views the commerce platform has of an
// order: the buyer-facing (incoming) order and the supplier-facing
// (outgoing) orders created by forwarding.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Type classifies how an order was created.
type Type string

const (
	// TypeStandard is a regular catalog order.
	TypeStandard Type = "standard"
	// TypeQuote is derived from a negotiated quote. Quote orders skip
	// tax, accounting, and shipping validation after submit.
	TypeQuote Type = "quote"
)

// ClaimStatus tracks return/refund claims against an order.
type ClaimStatus string

const (
	ClaimNone ClaimStatus = "no_claim"
)

// ShippingStatus tracks fulfilment progress.
type ShippingStatus string

const (
	ShippingProcessing ShippingStatus = "processing"
)

// SubmittedStatus tracks the lifecycle of a submitted order.
type SubmittedStatus string

const (
	SubmittedOpen SubmittedStatus = "open"
)

// ProductType classifies a product on a line item.
type ProductType string

const (
	ProductStandard ProductType = "standard"
	// ProductQuote carries a negotiated unit price that the platform's
	// forward operation does not copy onto supplier orders.
	ProductQuote ProductType = "quote"
)

// PaymentType is the payment instrument used on the buyer order.
type PaymentType string

const (
	PaymentCreditCard    PaymentType = "credit_card"
	PaymentPurchaseOrder PaymentType = "purchase_order"
)

// NoRatesID is the reserved ship-method identifier the estimate service
// selects when no real carrier rates could be determined and a generic
// fallback rate was applied instead.
const NoRatesID = "NO_SHIPPING_RATES"

// Address is a postal address snapshot.
type Address struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Street1     string `json:"street1"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
}

// SelectedShipMethod is the supplier-facing view of the ship method chosen
// for one ship-from address.
type SelectedShipMethod struct {
	Name                 string `json:"name"`
	EstimatedTransitDays int    `json:"estimatedTransitDays"`
	ShipFromAddressID    string `json:"shipFromAddressId"`
}

// XP is the extended-properties bag carried on every order. The platform
// stores it as free-form JSON; this is the closed set of fields the
// middleware reads and writes.
type XP struct {
	OrderType                Type                 `json:"orderType"`
	ClaimStatus              ClaimStatus          `json:"claimStatus,omitempty"`
	ShippingStatus           ShippingStatus       `json:"shippingStatus,omitempty"`
	SubmittedStatus          SubmittedStatus      `json:"submittedStatus,omitempty"`
	SupplierIDs              []string             `json:"supplierIds,omitempty"`
	ShipFromAddressIDs       []string             `json:"shipFromAddressIds,omitempty"`
	NeedsAttention           bool                 `json:"needsAttention"`
	StopShipSync             bool                 `json:"stopShipSync"`
	Currency                 string               `json:"currency,omitempty"`
	PaymentMethod            string               `json:"paymentMethod,omitempty"`
	HasSellerProducts        bool                 `json:"hasSellerProducts"`
	ExternalTaxTransactionID string               `json:"externalTaxTransactionId,omitempty"`
	SelectedShipMethods      []SelectedShipMethod `json:"selectedShipMethods,omitempty"`
	// ShippingAddress is snapshotted for purchase order detail reporting.
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	QuoteOrderInfo  string   `json:"quoteOrderInfo,omitempty"`
}

// Order is an order header, buyer- or supplier-facing depending on the
// Direction it was fetched with.
type Order struct {
	ID            string          `json:"id"`
	FromCompanyID string          `json:"fromCompanyId"`
	ToCompanyID   string          `json:"toCompanyId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shippingCost"`
	TaxCost       decimal.Decimal `json:"taxCost"`
	Total         decimal.Decimal `json:"total"`
	Submitted     bool            `json:"submitted"`
	XP            XP              `json:"xp"`
}

// LineItemXP holds the extended properties written per line item.
type LineItemXP struct {
	// ShipMethod is the human-readable name of the selected ship method.
	ShipMethod string `json:"shipMethod,omitempty"`
}

// LineItem is one line of an order.
type LineItem struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"productId"`
	ProductType       ProductType     `json:"productType"`
	SupplierID        string          `json:"supplierId,omitempty"`
	ShipFromAddressID string          `json:"shipFromAddressId,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	XP                LineItemXP      `json:"xp"`
}

// ShipMethod is one rate quoted for a ship estimate.
type ShipMethod struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Cost                 decimal.Decimal `json:"cost"`
	EstimatedTransitDays int             `json:"estimatedTransitDays"`
}

// ShipEstimate groups the quoted methods for one supplier ship-from
// address, with the method the buyer selected at checkout.
type ShipEstimate struct {
	ID                   string       `json:"id"`
	SupplierID           string       `json:"supplierId,omitempty"`
	ShipFromAddressID    string       `json:"shipFromAddressId,omitempty"`
	ShipMethods          []ShipMethod `json:"shipMethods"`
	SelectedShipMethodID string       `json:"selectedShipMethodId"`
}

// ShipEstimateResponse is the stored outcome of the checkout shipping
// estimate call. Status carries the estimate service's HTTP-style status;
// anything other than 200 means estimates fell back to defaults.
type ShipEstimateResponse struct {
	Status        int            `json:"status"`
	ErrorBody     string         `json:"errorBody,omitempty"`
	ShipEstimates []ShipEstimate `json:"shipEstimates"`
}

// Supplier is the supplier company record.
type Supplier struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// Payment is a payment registered against the buyer order.
type Payment struct {
	ID   string      `json:"id"`
	Type PaymentType `json:"type"`
}

// Promotion is a promotion applied to the order, needed for tax commit.
type Promotion struct {
	ID     string          `json:"id"`
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Worksheet is one consistent read of an order: header, lines, and the
// shipping estimates computed at checkout. The submit pipeline re-fetches
// it after forwarding because forwarding mutates platform state the
// original snapshot does not reflect.
type Worksheet struct {
	Order                Order                `json:"order"`
	LineItems            []LineItem           `json:"lineItems"`
	ShipEstimateResponse ShipEstimateResponse `json:"shipEstimateResponse"`
}

// IsStandardOrder reports whether the worksheet's order goes through the
// full set of post-submit integrations. Quote-derived orders stop after
// the confirmation notification.
func (w *Worksheet) IsStandardOrder() bool {
	return w.Order.XP.OrderType != TypeQuote
}

// SupplierIDs returns the distinct supplier IDs across the worksheet's
// line items, in first-seen order. Lines without a supplier (seller-owned
// products) are skipped.
func (w *Worksheet) SupplierIDs() []string {
	seen := make(map[string]struct{}, 4)
	var ids []string
	for _, li := range w.LineItems {
		if li.SupplierID == "" {
			continue
		}
		if _, ok := seen[li.SupplierID]; ok {
			continue
		}
		seen[li.SupplierID] = struct{}{}
		ids = append(ids, li.SupplierID)
	}
	return ids
}

// SupplierOrderID derives the identifier of the supplier order created by
// forwarding a buyer order to one supplier. The convention is stable so
// forwarding retries target the same supplier order instead of creating
// duplicates.
func SupplierOrderID(buyerOrderID, supplierID string) string {
	return fmt.Sprintf("%s-%s", buyerOrderID, supplierID)
}
