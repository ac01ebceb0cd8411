package payment

import (
	"github.com/gofrs/uuid"

	"github.com/vendhub/marketplace/internal/order"
)

// VendorShare is one vendor's slice of an order's proceeds.
type VendorShare struct {
	VendorID     uuid.UUID
	Amount       float64
	PlatformFee  float64
	VendorAmount float64
}

// SplitFee divides an amount into the platform's cut and the vendor's
// remainder. feePercentage is expressed as a whole percentage, e.g. 5 for 5%.
func SplitFee(amount, feePercentage float64) (platformFee, vendorAmount float64) {
	platformFee = amount * feePercentage / 100
	return platformFee, amount - platformFee
}

// SplitByVendor groups order lines by the owning vendor and applies the fee
// split to each group. Orders are currently restricted to one vendor at
// creation time, but settlement handles the general case.
func SplitByVendor(lines []order.Line, vendorOf func(productID uuid.UUID) uuid.UUID, feePercentage float64) []VendorShare {
	amounts := make(map[uuid.UUID]float64)
	vendorIDs := make([]uuid.UUID, 0, 1)

	for _, line := range lines {
		vendorID := vendorOf(line.ProductID)
		if _, ok := amounts[vendorID]; !ok {
			vendorIDs = append(vendorIDs, vendorID)
		}
		amounts[vendorID] += line.Price * float64(line.Quantity)
	}

	shares := make([]VendorShare, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		amount := amounts[vendorID]
		fee, vendorAmount := SplitFee(amount, feePercentage)
		shares = append(shares, VendorShare{
			VendorID:     vendorID,
			Amount:       amount,
			PlatformFee:  fee,
			VendorAmount: vendorAmount,
		})
	}
	return shares
}
