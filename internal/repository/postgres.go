package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uhs-developer/kora/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const orderColumns = `id, order_number, status, payment_status, grand_total, currency,
	customer_email, customer_name, customer_phone,
	shipping_address, billing_address, items, payment_meta,
	paid_at, completed_at, cancelled_at, version, created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	shipJSON, billJSON, itemsJSON, metaJSON, err := marshalOrderBlobs(order)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.Status,
		order.PaymentStatus,
		order.GrandTotal,
		order.Currency,
		order.CustomerEmail,
		order.CustomerName,
		order.CustomerPhone,
		shipJSON,
		billJSON,
		itemsJSON,
		metaJSON,
		order.PaidAt,
		order.CompletedAt,
		order.CancelledAt,
	)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	order.Version = 1
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, number))
}

func (r *Repository) FindOrderByChargeID(ctx context.Context, chargeID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE payment_meta->>'charge_id' = $1 OR payment_meta->>'transaction_id' = $1
	          LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, chargeID))
}

func (r *Repository) FindOrdersByNumberWithin(ctx context.Context, reference string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE strpos($1, order_number) > 0`

	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("query orders by reference: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// UpdateOrder is a compare-and-swap on the version column. Both
// reconciliation paths and the admin mutation path go through here, so
// concurrent writers to the same order row cannot lose updates.
func (r *Repository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	_, _, itemsJSON, metaJSON, err := marshalOrderBlobs(order)
	if err != nil {
		return err
	}

	query := `UPDATE orders
	          SET status = $2, payment_status = $3, items = $4, payment_meta = $5,
	              paid_at = $6, completed_at = $7, cancelled_at = $8,
	              version = version + 1, updated_at = NOW()
	          WHERE id = $1 AND version = $9`

	res, execErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.Status,
		order.PaymentStatus,
		itemsJSON,
		metaJSON,
		order.PaidAt,
		order.CompletedAt,
		order.CancelledAt,
		order.Version,
	)
	if execErr != nil {
		return fmt.Errorf("update order: %w", execErr)
	}

	affected, raErr := res.RowsAffected()
	if raErr != nil {
		return fmt.Errorf("update order rows affected: %w", raErr)
	}
	if affected == 0 {
		// Either the row is gone or someone else bumped the version.
		if _, getErr := r.GetOrderByID(ctx, order.ID); errors.Is(getErr, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return ErrVersionConflict
	}

	order.Version++
	return nil
}

func (r *Repository) ListPaymentTimedOut(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE status = 'pending'
	            AND payment_status IN ('pending', 'failed')
	            AND created_at < $1
	          ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query timed out orders: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *Repository) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `INSERT INTO audit_log (event, subject, actor, metadata, message, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		entry.Event,
		entry.Subject,
		entry.Actor,
		metaJSON,
		entry.Message,
	)
	if insertErr != nil {
		return fmt.Errorf("insert audit entry: %w", insertErr)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row rowScanner) (*domain.Order, error) {
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (r *Repository) scanAll(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
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

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var shipJSON, billJSON, itemsJSON, metaJSON []byte

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Status,
		&order.PaymentStatus,
		&order.GrandTotal,
		&order.Currency,
		&order.CustomerEmail,
		&order.CustomerName,
		&order.CustomerPhone,
		&shipJSON,
		&billJSON,
		&itemsJSON,
		&metaJSON,
		&order.PaidAt,
		&order.CompletedAt,
		&order.CancelledAt,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shipJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billJSON, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(metaJSON, &order.PaymentMeta); err != nil {
		return nil, fmt.Errorf("unmarshal payment metadata: %w", err)
	}

	return &order, nil
}

func marshalOrderBlobs(order *domain.Order) (ship, bill, items, meta []byte, err error) {
	if ship, err = json.Marshal(order.ShippingAddress); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	if bill, err = json.Marshal(order.BillingAddress); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal billing address: %w", err)
	}
	if items, err = json.Marshal(order.Items); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal order items: %w", err)
	}
	if meta, err = json.Marshal(order.PaymentMeta); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal payment metadata: %w", err)
	}
	return ship, bill, items, meta, nil
}
