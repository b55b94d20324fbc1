package domain

type DiscountType string

const (
	DiscountFlat       DiscountType = "flat"
	DiscountPercentage DiscountType = "percentage"
)

type Coupon struct {
	Code               string       `json:"code"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	DiscountType       DiscountType `json:"discountType"`
	Value              float64      `json:"value"`
	MinimumOrderAmount float64      `json:"minimumOrderAmount"`
}

// AppliedCoupon is a coupon attached to a cart together with the discount it currently yields.
type AppliedCoupon struct {
	Coupon
	DiscountAmount float64 `json:"discountAmount"`
}
