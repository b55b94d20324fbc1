package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() domain.Order {
	return domain.Order{
		ID:     "o1",
		Number: "ECM12345678",
		Billing: domain.Address{
			FirstName: "Asha",
			LastName:  "Rao",
			Email:     "asha@example.com",
		},
		Items: []domain.CartLineItem{
			{ProductID: "p1", Variant: domain.DefaultVariant, Title: "Turmeric", Price: "120", Quantity: 2},
			{ProductID: "p2", Variant: "1kg", Title: "Rice <Basmati>", Price: "300", Quantity: 1},
		},
		Coupon: &domain.AppliedCoupon{Coupon: domain.Coupon{Code: "FLAT100"}, DiscountAmount: 100},
		Totals: domain.Totals{Subtotal: 540, Shipping: 0, HandlingFee: 10, Discount: 100, Total: 450},
	}
}

type sentMail struct {
	From struct {
		Email string `json:"email"`
	} `json:"from"`
	Subject          string `json:"subject"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"to"`
	} `json:"personalizations"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestSendGrid_SendOrderConfirmation(t *testing.T) {
	var got sentMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendGrid("key", srv.URL, "shop@example.com", "Shop")
	require.NoError(t, m.SendOrderConfirmation(context.Background(), testOrder()))

	assert.Equal(t, "shop@example.com", got.From.Email)
	assert.Equal(t, "Your order ECM12345678 is confirmed", got.Subject)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "asha@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "Asha Rao", got.Personalizations[0].To[0].Name)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
	assert.Contains(t, got.Content[0].Value, "Turmeric x 2 @ 120")
	assert.Contains(t, got.Content[0].Value, "Rice <Basmati> (1kg) x 1")
	assert.Contains(t, got.Content[0].Value, "Discount (FLAT100): -100.00")
	assert.Contains(t, got.Content[1].Value, "Rice &lt;Basmati&gt;")
}

func TestSendGrid_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := NewSendGrid("key", srv.URL, "shop@example.com", "Shop")
	err := m.SendOrderConfirmation(context.Background(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendGrid_NoRecipient(t *testing.T) {
	m := NewSendGrid("key", "http://unused", "shop@example.com", "Shop")
	order := testOrder()
	order.Billing.Email = " "
	assert.ErrorIs(t, m.SendOrderConfirmation(context.Background(), order), ErrNoRecipient)
}

func TestRenderConfirmation_WithoutCoupon(t *testing.T) {
	order := testOrder()
	order.Coupon = nil
	order.Billing.FirstName = ""

	plain, _, err := renderConfirmation(order)
	require.NoError(t, err)
	assert.Contains(t, plain, "Hi there,")
	assert.NotContains(t, plain, "Discount")
	assert.Contains(t, plain, "Total: 450.00")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.SendOrderConfirmation(context.Background(), testOrder()))
}
