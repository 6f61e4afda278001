// Package integration runs the marketplace against a real PostgreSQL
// started with testcontainers and migrated with the SQL migrations.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/infrastructure/migration"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated PostgreSQL container owned by one test
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewTestDB starts a fresh container, applies every migration and
// terminates the container when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("cryptonexus_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gormLogger := logger.Default.LogMode(logger.Silent)
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	require.NoError(t, err, "connect to postgres")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tdb := &TestDB{DB: db, SqlDB: sqlDB, DSN: dsn, t: t}
	m := tdb.Migrator()
	require.NoError(t, m.Up(), "apply migrations")
	return tdb
}

// Migrator opens a migrator over the shipped migrations. Closing it closes
// the shared connection, so tests let the cleanup handle it.
func (tdb *TestDB) Migrator() *migration.Migrator {
	tdb.t.Helper()
	m, err := migration.New(tdb.SqlDB, migrationsDir(tdb.t), zap.NewNop())
	require.NoError(tdb.t, err)
	return m
}

func migrationsDir(t *testing.T) string {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir, err := filepath.Abs(filepath.Join(filepath.Dir(file), "..", "..", "migrations"))
	require.NoError(t, err)
	return dir
}

// CreateTestUser stores a user of the given type. Admins cannot register
// through the API so tests create them here.
func (tdb *TestDB) CreateTestUser(username string, userType identity.UserType) *identity.User {
	tdb.t.Helper()

	user, err := identity.NewUser(username, username+"@example.com", "Password123!", userType)
	require.NoError(tdb.t, err, "Failed to build test user")
	require.NoError(tdb.t, persistence.NewGormUserRepository(tdb.DB).Create(context.Background(), user),
		"Failed to create test user")
	return user
}

// CreateTestCategory stores an active category and returns its ID
func (tdb *TestDB) CreateTestCategory(name string) uuid.UUID {
	tdb.t.Helper()

	category, err := catalog.NewCategory(name, "", 0)
	require.NoError(tdb.t, err, "Failed to build test category")
	require.NoError(tdb.t, persistence.NewGormCategoryRepository(tdb.DB).Save(context.Background(), category),
		"Failed to create test category")
	return category.ID
}
