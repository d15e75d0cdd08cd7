package sandbox

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace-postsubmit/internal/domain/order"
)

// DemoOrderID is the buyer order seeded by SeedDemo.
const DemoOrderID = "SBX-0001"

// SeedDemo populates the platform with a submittable two-supplier order,
// the matching supplier records, a credit card payment, and one applied
// promotion. Returned so callers can tweak it before use.
func SeedDemo(p *Platform) *order.Worksheet {
	p.SeedSupplier(order.Supplier{ID: "BRANDWEAR", Name: "Brandwear Ltd", Currency: "USD"})
	p.SeedSupplier(order.Supplier{ID: "PRINTCO", Name: "PrintCo Inc", Currency: "USD"})

	ws := &order.Worksheet{
		Order: order.Order{
			ID:            DemoOrderID,
			FromCompanyID: "buyer-acme",
			Subtotal:      decimal.RequireFromString("245.00"),
			ShippingCost:  decimal.RequireFromString("18.40"),
			Total:         decimal.RequireFromString("263.40"),
			Submitted:     true,
		},
		LineItems: []order.LineItem{
			{
				ID:                "li-1",
				ProductID:         "hoodie-classic",
				ProductType:       order.ProductStandard,
				SupplierID:        "BRANDWEAR",
				ShipFromAddressID: "BRANDWEAR-east",
				Quantity:          5,
				UnitPrice:         decimal.RequireFromString("25.00"),
			},
			{
				ID:                "li-2",
				ProductID:         "banner-custom",
				ProductType:       order.ProductQuote,
				SupplierID:        "PRINTCO",
				ShipFromAddressID: "PRINTCO-main",
				Quantity:          1,
				UnitPrice:         decimal.RequireFromString("120.00"),
			},
		},
		ShipEstimateResponse: order.ShipEstimateResponse{
			Status: 200,
			ShipEstimates: []order.ShipEstimate{
				{
					ID:                   "se-1",
					SupplierID:           "BRANDWEAR",
					ShipFromAddressID:    "BRANDWEAR-east",
					SelectedShipMethodID: "fedex-ground",
					ShipMethods: []order.ShipMethod{
						{ID: "fedex-ground", Name: "FEDEX_GROUND", Cost: decimal.RequireFromString("9.20"), EstimatedTransitDays: 4},
					},
				},
				{
					ID:                   "se-2",
					SupplierID:           "PRINTCO",
					ShipFromAddressID:    "PRINTCO-main",
					SelectedShipMethodID: "ups-ground",
					ShipMethods: []order.ShipMethod{
						{ID: "ups-ground", Name: "UPS_GROUND", Cost: decimal.RequireFromString("9.20"), EstimatedTransitDays: 3},
					},
				},
			},
		},
	}
	ws.Order.XP.OrderType = order.TypeStandard
	ws.Order.XP.ShippingAddress = &order.Address{
		ID:          "ship-acme",
		CompanyName: "Acme Corp",
		Street1:     "500 Market St",
		City:        "Portland",
		State:       "OR",
		Zip:         "97201",
		Country:     "US",
	}

	p.SeedWorksheet(ws)
	p.SeedPayment(DemoOrderID, order.Payment{ID: "pay-1", Type: order.PaymentCreditCard})
	p.SeedPromotion(DemoOrderID, order.Promotion{ID: "promo-1", Code: "WELCOME10", Amount: decimal.RequireFromString("10.00")})
	return ws
}
