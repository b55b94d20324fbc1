package pricing

import "github.com/fjod/go_cart/storefront/internal/domain"

// View selects which surface the totals are computed for. Only checkout charges handling.
type View string

const (
	ViewCart     View = "cart"
	ViewCheckout View = "checkout"
)

type Calculator struct {
	FreeShippingThreshold float64
	ShippingRate          float64
	HandlingFee           float64
}

func DefaultCalculator() Calculator {
	return Calculator{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		ShippingRate:          DefaultShippingRate,
		HandlingFee:           DefaultHandlingFee,
	}
}

func (c Calculator) Totals(lines []domain.CartLineItem, coupon *domain.Coupon, view View) domain.Totals {
	subtotal := Subtotal(lines)
	shipping := Shipping(subtotal, c.FreeShippingThreshold, c.ShippingRate)
	discount := CouponDiscount(subtotal, coupon)

	var handling float64
	if view == ViewCheckout {
		handling = c.HandlingFee
	}

	return domain.Totals{
		Subtotal:                 subtotal,
		Shipping:                 shipping,
		HandlingFee:              handling,
		Discount:                 discount,
		Total:                    Total(subtotal, shipping, handling, discount),
		RemainingForFreeShipping: RemainingForFreeShipping(subtotal, c.FreeShippingThreshold),
		FreeShippingProgress:     FreeShippingProgress(subtotal, c.FreeShippingThreshold),
	}
}
