// Package testhelpers sets up real backing services for integration tests.
// Postgres comes from TEST_DATABASE_URL when set, otherwise from a
// throwaway container. Integration tests are skipped in -short mode.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"reviewdesk/internal/models"
	"reviewdesk/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB migrates a test database and empties its tables when the
// test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = startPostgres(t)
	}

	if err := database.RunMigrations(dsn); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	pool, err := database.NewPool(context.Background(), dsn, 4)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := &TestDB{Pool: pool}
	db.Cleanup = func() {
		_, _ = pool.Exec(context.Background(), `
			TRUNCATE audit_logs, business_settings, invoices, invoice_sequences,
				reviews, invitations, profiles, tenants CASCADE`)
		pool.Close()
	}
	t.Cleanup(db.Cleanup)
	return db
}

// SetupTestTenant creates an active tenant.
func SetupTestTenant(t *testing.T, db *TestDB, name string) uuid.UUID {
	t.Helper()

	tenantID := uuid.New()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO tenants (id, name, status, plan_type, created_at, updated_at)
		VALUES ($1, $2, $3, 'basic', $4, $4)
	`, tenantID, name, models.TenantStatusActive, time.Now())
	if err != nil {
		t.Fatalf("failed to create test tenant: %v", err)
	}
	return tenantID
}

// SetupTestProfile creates an active profile bound to tenantID (nil for a
// super admin or an unbound signup).
func SetupTestProfile(t *testing.T, db *TestDB, email string, role models.Role, tenantID *uuid.UUID) *models.Profile {
	t.Helper()

	now := time.Now()
	p := &models.Profile{
		ID:        uuid.New(),
		Email:     email,
		Role:      role,
		TenantID:  tenantID,
		Status:    models.ProfileStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx := context.Background()
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin profile insert: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// profiles carry a tenant policy; fixtures write as the platform does
	if _, err := tx.Exec(ctx, `SELECT set_config('app.bypass_rls', 'on', true)`); err != nil {
		t.Fatalf("failed to bypass tenant policy: %v", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, email, full_name, role, tenant_id, status, created_at, updated_at)
		VALUES ($1, $2, '', $3, $4, $5, $6, $6)
	`, p.ID, p.Email, p.Role, p.TenantID, p.Status, now)
	if err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("failed to commit test profile: %v", err)
	}
	return p
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("reviewdesk_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres container connection string: %v", err)
	}
	return dsn
}

// SetupTestRedis starts a Redis container and returns a client for it.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
