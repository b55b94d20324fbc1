package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrUnknownCoupon = errors.New("unknown coupon code")
	ErrCouponMinimum = errors.New("order below coupon minimum")
)

var catalog = []domain.Coupon{
	{
		Code:               "FLAT100",
		Title:              "Flat ₹100 Off",
		Description:        "Get flat ₹100 off on your order",
		DiscountType:       domain.DiscountFlat,
		Value:              100,
		MinimumOrderAmount: 0,
	},
	{
		Code:               "SAVE20",
		Title:              "20% Off",
		Description:        "Get 20% off on orders above ₹1000",
		DiscountType:       domain.DiscountPercentage,
		Value:              20,
		MinimumOrderAmount: 1000,
	},
}

// Coupons returns the available coupons.
func Coupons() []domain.Coupon {
	out := make([]domain.Coupon, len(catalog))
	copy(out, catalog)
	return out
}

// LookupCoupon finds a coupon by code, ignoring case and surrounding space.
func LookupCoupon(code string) (domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range catalog {
		if c.Code == code {
			return c, nil
		}
	}
	return domain.Coupon{}, fmt.Errorf("%w: %q", ErrUnknownCoupon, code)
}

// Apply checks the coupon against subtotal and returns it with its discount.
func Apply(coupon domain.Coupon, subtotal float64) (domain.AppliedCoupon, error) {
	if subtotal < coupon.MinimumOrderAmount {
		return domain.AppliedCoupon{}, fmt.Errorf("%w: minimum order amount of %.2f required", ErrCouponMinimum, coupon.MinimumOrderAmount)
	}
	return domain.AppliedCoupon{
		Coupon:         coupon,
		DiscountAmount: CouponDiscount(subtotal, &coupon),
	}, nil
}
