// Package pricing derives cart totals: subtotal, shipping, handling and coupon discount.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	DefaultFreeShippingThreshold = 500.0
	DefaultShippingRate          = 20.0
	DefaultHandlingFee           = 10.0
)

// ParsePrice converts a decimal string to a number. Anything unparsable is 0.
func ParsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func Subtotal(lines []domain.CartLineItem) float64 {
	var total float64
	for _, l := range lines {
		total += ParsePrice(l.Price) * float64(l.Quantity)
	}
	return round2(total)
}

// Shipping is free at or above the threshold and flatRate below it.
func Shipping(subtotal, freeThreshold, flatRate float64) float64 {
	if subtotal >= freeThreshold {
		return 0
	}
	return flatRate
}

// CouponDiscount returns the discount a coupon yields on subtotal. It is 0 when the
// coupon is nil or the subtotal is below its minimum, and never exceeds the subtotal.
func CouponDiscount(subtotal float64, coupon *domain.Coupon) float64 {
	if coupon == nil || subtotal < coupon.MinimumOrderAmount || subtotal <= 0 {
		return 0
	}

	var discount float64
	switch coupon.DiscountType {
	case domain.DiscountFlat:
		discount = coupon.Value
	case domain.DiscountPercentage:
		discount = subtotal * coupon.Value / 100
	}
	return round2(math.Max(0, math.Min(discount, subtotal)))
}

// Total never goes below zero.
func Total(subtotal, shipping, handling, discount float64) float64 {
	return round2(math.Max(0, subtotal+shipping+handling-discount))
}

func RemainingForFreeShipping(subtotal, freeThreshold float64) float64 {
	return round2(math.Max(0, freeThreshold-subtotal))
}

// FreeShippingProgress is the share of the threshold reached, in percent, capped at 100.
func FreeShippingProgress(subtotal, freeThreshold float64) float64 {
	if freeThreshold <= 0 {
		return 100
	}
	return round2(math.Min(100, math.Max(0, subtotal/freeThreshold*100)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
