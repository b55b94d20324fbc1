package orders

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c Credentials) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

// PostgresStore records orders in Postgres. Inserts are keyed by order id, so a retried
// submission of the same order reports ErrDuplicateOrder.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cred Credentials) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cred.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return NewPostgresStoreFromDB(db), nil
}

func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunMigrations() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: "storefront_orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

const insertOrder = `INSERT INTO orders
	(id, order_number, session_id, billing, shipping, ship_to_different, notes, items, coupon, totals, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *PostgresStore) Submit(ctx context.Context, order domain.Order) error {
	billing, shipping, items, coupon, totals, err := marshalOrder(order)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, insertOrder,
		order.ID,
		order.Number,
		order.Session,
		billing,
		shipping,
		order.ShipToDifferent,
		order.Notes,
		items,
		nullableJSON(coupon),
		totals,
		order.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const selectOrder = `SELECT id, order_number, session_id, billing, shipping, ship_to_different, notes, items, coupon, totals, created_at
	FROM orders`

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := s.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

// ListBySession returns the orders of a session, newest first.
func (s *PostgresStore) ListBySession(ctx context.Context, session string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrder+` WHERE session_id = $1 ORDER BY created_at DESC`, session)
	if err != nil {
		return nil, fmt.Errorf("query orders by session: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (domain.Order, error) {
	var order domain.Order
	var billing, shipping, items, coupon, totals []byte
	var notes sql.NullString
	if err := row.Scan(
		&order.ID,
		&order.Number,
		&order.Session,
		&billing,
		&shipping,
		&order.ShipToDifferent,
		&notes,
		&items,
		&coupon,
		&totals,
		&order.CreatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Notes = notes.String

	if err := json.Unmarshal(billing, &order.Billing); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal billing: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal shipping: %w", err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	if len(coupon) > 0 && string(coupon) != "null" {
		order.Coupon = &domain.AppliedCoupon{}
		if err := json.Unmarshal(coupon, order.Coupon); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal coupon: %w", err)
		}
	}
	if err := json.Unmarshal(totals, &order.Totals); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal totals: %w", err)
	}
	return order, nil
}

func marshalOrder(order domain.Order) (billing, shipping, items, coupon, totals []byte, err error) {
	if billing, err = json.Marshal(order.Billing); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal billing: %w", err)
	}
	if shipping, err = json.Marshal(order.Shipping); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal shipping: %w", err)
	}
	if items, err = json.Marshal(order.Items); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	if order.Coupon != nil {
		if coupon, err = json.Marshal(order.Coupon); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("marshal coupon: %w", err)
		}
	}
	if totals, err = json.Marshal(order.Totals); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal totals: %w", err)
	}
	return billing, shipping, items, coupon, totals, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
