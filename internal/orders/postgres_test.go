package orders

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{
	"id", "order_number", "session_id", "billing", "shipping", "ship_to_different",
	"notes", "items", "coupon", "totals", "created_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

func newTestOrder() domain.Order {
	return domain.Order{
		ID:      "0b5c2f4e-7a1d-4d0e-9a53-2b1f7e4c9d10",
		Number:  "ECM12345678",
		Session: "sess-1",
		Billing: domain.Address{FirstName: "Asha", Email: "asha@example.com"},
		Items: []domain.CartLineItem{
			{ProductID: "p1", Variant: domain.DefaultVariant, Title: "Turmeric", Price: "120", Quantity: 2},
		},
		Totals:    domain.Totals{Subtotal: 240, Shipping: 20, HandlingFee: 10, Total: 270},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPostgresStore_Submit(t *testing.T) {
	store, mock := newMockStore(t)
	order := newTestOrder()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.Number, order.Session, sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, "", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), order.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Submit(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SubmitWithCoupon(t *testing.T) {
	store, mock := newMockStore(t)
	order := newTestOrder()
	order.Coupon = &domain.AppliedCoupon{
		Coupon:         domain.Coupon{Code: "FLAT100", DiscountType: domain.DiscountFlat, Value: 100},
		DiscountAmount: 100,
	}

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.Number, order.Session, sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), order.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Submit(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SubmitDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO orders").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Submit(context.Background(), newTestOrder())
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SubmitFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO orders").WillReturnError(errors.New("connection reset"))

	err := store.Submit(context.Background(), newTestOrder())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateOrder)
	assert.Contains(t, err.Error(), "insert order")
}

func TestPostgresStore_GetOrder(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
			"o1", "ECM00000001", "sess-1",
			[]byte(`{"firstName":"Asha"}`), []byte(`{}`), true, "leave at door",
			[]byte(`[{"productId":"p1","variant":"Default Title","title":"Turmeric","price":"120","quantity":2}]`),
			[]byte(`{"code":"FLAT100","discountType":"flat","value":100,"discountAmount":100}`),
			[]byte(`{"subtotal":240,"total":170}`),
			created,
		))

	order, err := store.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "ECM00000001", order.Number)
	assert.Equal(t, "Asha", order.Billing.FirstName)
	assert.True(t, order.ShipToDifferent)
	assert.Equal(t, "leave at door", order.Notes)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	require.NotNil(t, order.Coupon)
	assert.Equal(t, "FLAT100", order.Coupon.Code)
	assert.Equal(t, 170.0, order.Totals.Total)
	assert.Equal(t, created, order.CreatedAt)
}

func TestPostgresStore_GetOrderNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresStore_ListBySession(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(orderColumns).
		AddRow("o2", "ECM2", "sess-1", []byte(`{}`), []byte(`{}`), false, nil, []byte(`[]`), nil, []byte(`{}`), now).
		AddRow("o1", "ECM1", "sess-1", []byte(`{}`), []byte(`{}`), false, nil, []byte(`[]`), nil, []byte(`{}`), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE session_id = \\$1 ORDER BY created_at DESC").
		WithArgs("sess-1").
		WillReturnRows(rows)

	orders, err := store.ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)
	assert.Nil(t, orders[0].Coupon)
	assert.Empty(t, orders[1].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBySessionEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	orders, err := store.ListBySession(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestCredentials_DSN(t *testing.T) {
	c := Credentials{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "orders"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=orders sslmode=disable", c.dsn())

	c.SSLMode = "require"
	assert.Contains(t, c.dsn(), "sslmode=require")
}
