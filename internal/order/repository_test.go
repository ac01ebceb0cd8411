package order_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendhub/marketplace/internal/config"
	"github.com/vendhub/marketplace/internal/db"
	"github.com/vendhub/marketplace/internal/order"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("TEST_DB_HOST") == "" {
		fmt.Println("TEST_DB_HOST not set; skipping Postgres repository tests")
		return
	}

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := config.PostgresConfig{
		Host:            os.Getenv("TEST_DB_HOST"),
		Port:            getenv("TEST_DB_PORT", "5432"),
		User:            getenv("TEST_DB_USER", "postgres"),
		Password:        getenv("TEST_DB_PASSWORD", "postgres"),
		DBName:          getenv("TEST_DB_NAME", "marketplace_test"),
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MigrationsPath:  "../../migrations",
	}

	conn, err := db.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	pool = conn.Pool

	exitCode := m.Run()

	conn.Close()
	os.Exit(exitCode)
}

func setup(t *testing.T) order.Repository {
	t.Helper()

	truncate := func() {
		_, err := pool.Exec(context.Background(),
			`TRUNCATE TABLE order_lines, payments, orders, products, categories, vendors, users, auths CASCADE`)
		require.NoError(t, err, "failed to truncate tables")
	}
	truncate()
	t.Cleanup(truncate)

	return order.NewRepository(pool)
}

func newID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func seedAuth(t *testing.T, role string) uuid.UUID {
	t.Helper()
	id := newID(t)
	now := time.Now().UTC()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO auths (id, email, password_hash, role, status, is_verified, is_deleted, created_at, updated_at)
		VALUES ($1, $2, 'x', $3, 'APPROVED', TRUE, FALSE, $4, $4)
	`, id, id.String()+"@example.com", role, now)
	require.NoError(t, err)
	return id
}

func seedUser(t *testing.T) uuid.UUID {
	t.Helper()
	id := newID(t)
	now := time.Now().UTC()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, auth_id, created_at, updated_at) VALUES ($1, $2, $3, $3)
	`, id, seedAuth(t, "USER"), now)
	require.NoError(t, err)
	return id
}

func seedVendor(t *testing.T) uuid.UUID {
	t.Helper()
	id := newID(t)
	now := time.Now().UTC()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO vendors (id, auth_id, created_at, updated_at) VALUES ($1, $2, $3, $3)
	`, id, seedAuth(t, "VENDOR"), now)
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, vendorID uuid.UUID, price float64, stock int) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()

	categoryID := newID(t)
	_, err := pool.Exec(context.Background(), `
		INSERT INTO categories (id, name, status, is_deleted, created_at, updated_at)
		VALUES ($1, 'Electronics', 'APPROVED', FALSE, $2, $2)
	`, categoryID, now)
	require.NoError(t, err)

	id := newID(t)
	_, err = pool.Exec(context.Background(), `
		INSERT INTO products (id, vendor_id, category_id, name, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, 'Widget', $4, $5, $6, $6)
	`, id, vendorID, categoryID, price, stock, now)
	require.NoError(t, err)
	return id
}

func productStock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var stock int
	err := pool.QueryRow(context.Background(),
		`SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func TestPostgresRepository_Create_DecrementsStock(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := seedUser(t)
	vendorID := seedVendor(t)
	productID := seedProduct(t, vendorID, 100, 5)

	o := &order.Order{
		UserID:        userID,
		TotalPrice:    300,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Lines:         []order.Line{{ProductID: productID, Price: 100, Quantity: 3}},
	}

	require.NoError(t, repo.Create(ctx, o))
	assert.Equal(t, 2, productStock(t, productID))

	saved, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, saved.UserID)
	assert.Equal(t, order.StatusPending, saved.Status)
	if assert.Len(t, saved.Lines, 1) {
		assert.Equal(t, productID, saved.Lines[0].ProductID)
		assert.Equal(t, 3, saved.Lines[0].Quantity)
	}
}

func TestPostgresRepository_Create_InsufficientStockRollsBack(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := seedUser(t)
	vendorID := seedVendor(t)
	plentiful := seedProduct(t, vendorID, 50, 5)
	scarce := seedProduct(t, vendorID, 80, 1)

	o := &order.Order{
		UserID:        userID,
		TotalPrice:    260,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Lines: []order.Line{
			{ProductID: plentiful, Price: 50, Quantity: 2},
			{ProductID: scarce, Price: 80, Quantity: 2},
		},
	}

	err := repo.Create(ctx, o)
	require.ErrorIs(t, err, order.ErrInsufficientStock)

	// The whole transaction rolls back: the first line's decrement must not
	// survive the second line's failure.
	assert.Equal(t, 5, productStock(t, plentiful))
	assert.Equal(t, 1, productStock(t, scarce))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	assert.Equal(t, 0, count, "no order row may remain after a failed create")
}

func TestPostgresRepository_UpdateStatusRestoringStock_RestoresOnce(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := seedUser(t)
	vendorID := seedVendor(t)
	productID := seedProduct(t, vendorID, 100, 5)

	o := &order.Order{
		UserID:        userID,
		TotalPrice:    300,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Lines:         []order.Line{{ProductID: productID, Price: 100, Quantity: 3}},
	}
	require.NoError(t, repo.Create(ctx, o))
	require.Equal(t, 2, productStock(t, productID))

	actor := order.Actor{Role: order.RoleUser, UserID: userID}

	restored, err := repo.UpdateStatusRestoringStock(ctx, actor, o.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, 5, productStock(t, productID))

	// A second cancellation re-applies the status but must not put the same
	// quantities back again.
	restored, err = repo.UpdateStatusRestoringStock(ctx, actor, o.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, 5, productStock(t, productID))

	saved, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, saved.Status)
}

func TestPostgresRepository_UpdateStatusRestoringStock_ScopedNotFound(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := seedUser(t)
	otherUserID := seedUser(t)
	vendorID := seedVendor(t)
	productID := seedProduct(t, vendorID, 100, 5)

	o := &order.Order{
		UserID:        userID,
		TotalPrice:    100,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Lines:         []order.Line{{ProductID: productID, Price: 100, Quantity: 1}},
	}
	require.NoError(t, repo.Create(ctx, o))

	stranger := order.Actor{Role: order.RoleUser, UserID: otherUserID}
	_, err := repo.UpdateStatusRestoringStock(ctx, stranger, o.ID, order.StatusCancelled)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.Equal(t, 4, productStock(t, productID), "an out-of-scope cancel must not touch stock")
}
