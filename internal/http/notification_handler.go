package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/toast"
	"github.com/go-chi/chi/v5"
)

// Toasts is the read side of the toast center.
type Toasts interface {
	Active(session string) []toast.Toast
	Dismiss(session, id string) bool
}

type NotificationHandler struct {
	toasts Toasts
}

func NewNotificationHandler(toasts Toasts) *NotificationHandler {
	return &NotificationHandler{toasts: toasts}
}

type NotificationsResponse struct {
	Notifications []toast.Toast `json:"notifications"`
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	active := h.toasts.Active(getSessionFromContext(r.Context()))
	respondJSON(w, http.StatusOK, NotificationsResponse{Notifications: active})
}

// Dismiss handles DELETE /api/v1/notifications/{id}
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if !h.toasts.Dismiss(getSessionFromContext(r.Context()), chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, "not_found", "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
