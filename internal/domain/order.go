package domain

import "time"

type Address struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	StreetAddress string `json:"streetAddress"`
	TownCity      string `json:"townCity"`
	PinCode       string `json:"pinCode"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

type Totals struct {
	Subtotal                 float64 `json:"subtotal"`
	Shipping                 float64 `json:"shipping"`
	HandlingFee              float64 `json:"handlingFee"`
	Discount                 float64 `json:"discount"`
	Total                    float64 `json:"total"`
	RemainingForFreeShipping float64 `json:"remainingForFreeShipping"`
	FreeShippingProgress     float64 `json:"freeShippingProgress"`
}

// Order is the finalized checkout handed to the order submission backend.
type Order struct {
	ID              string         `json:"id"`
	Number          string         `json:"orderNumber"`
	Session         string         `json:"session"`
	Billing         Address        `json:"billing"`
	Shipping        Address        `json:"shipping"`
	ShipToDifferent bool           `json:"shipToDifferent"`
	Notes           string         `json:"orderNotes,omitempty"`
	Items           []CartLineItem `json:"cart"`
	Coupon          *AppliedCoupon `json:"appliedCoupon,omitempty"`
	Totals          Totals         `json:"totals"`
	CreatedAt       time.Time      `json:"timestamp"`
}
