package domain

// DefaultVariant is the variant label of products without real variants.
const DefaultVariant = "Default Title"

type CartLineItem struct {
	ProductID      string `json:"productId"`
	Variant        string `json:"variant"`
	Title          string `json:"title"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice,omitempty"`
	Image          string `json:"image"`
	Quantity       int    `json:"quantity"`
	Handle         string `json:"handle"`
}

// VariantLabel returns the variant label, falling back to DefaultVariant.
func (l CartLineItem) VariantLabel() string {
	return NormalizeVariant(l.Variant)
}

// Matches reports whether the line item has the given composite identity.
func (l CartLineItem) Matches(productID, variant string) bool {
	return l.ProductID == productID && l.VariantLabel() == NormalizeVariant(variant)
}

func NormalizeVariant(variant string) string {
	if variant == "" {
		return DefaultVariant
	}
	return variant
}

type WishlistItem struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice,omitempty"`
	Image          string `json:"image"`
	Handle         string `json:"handle"`
}

// StateSync is the snapshot broadcast after every mutation of a session's state.
type StateSync struct {
	Session    string         `json:"session"`
	Cart       []CartLineItem `json:"cart"`
	Wishlist   []WishlistItem `json:"wishlist"`
	TotalItems int            `json:"totalItems"`
}
