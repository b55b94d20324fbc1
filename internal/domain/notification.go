package domain

import "time"

type Category string

const (
	CategoryCart     Category = "cart"
	CategoryWishlist Category = "wishlist"
)

type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
	ActionUpdated Action = "updated"
)

type NotificationItem struct {
	Title    string  `json:"title"`
	Image    string  `json:"image"`
	Variant  *string `json:"variant,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

type Notification struct {
	ID        string           `json:"id"`
	Session   string           `json:"session"`
	Category  Category         `json:"category"`
	Action    Action           `json:"action"`
	Item      NotificationItem `json:"item"`
	CreatedAt time.Time        `json:"createdAt"`
}

// CartNotificationItem builds the display payload of a cart line. The sentinel variant is omitted.
func CartNotificationItem(l CartLineItem, quantity int) NotificationItem {
	item := NotificationItem{
		Title:    l.Title,
		Image:    l.Image,
		Quantity: &quantity,
	}
	if v := l.VariantLabel(); v != DefaultVariant {
		item.Variant = &v
	}
	return item
}

func WishlistNotificationItem(w WishlistItem) NotificationItem {
	return NotificationItem{
		Title: w.Title,
		Image: w.Image,
	}
}
