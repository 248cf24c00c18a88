// Package testutil provides shared helpers for the ledger test suites:
// database fixtures, auth contexts and gin request helpers.
package testutil

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/clubledger/backend/internal/infrastructure/persistence/tenant"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a postgres-dialect GORM handle whose statements are checked
// against sqlmock expectations. The connection closes with the test.
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB returns a MockDB with the tenant guard installed, so that
// expected SQL carries the tenant predicate the repositories rely on.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open GORM connection")
	require.NoError(t, tenant.NewGuard("").Register(db), "Failed to register tenant guard")

	return &MockDB{DB: db, Mock: mock}
}

// ExpectationsWereMet fails the test on unmet or unexpected statements
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// NewSQLiteDB opens a migrated in-memory sqlite database with the tenant
// guard installed. A single connection is used so that the database is
// shared by every statement and transactions run one at a time.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...), "Failed to migrate")
	require.NoError(t, tenant.NewGuard("").Register(db), "Failed to register tenant guard")
	return db
}

// NewAuth builds an AuthContext for a tenant-wide actor holding perms
func NewAuth(t *testing.T, tenantID uuid.UUID, perms ...string) *identity.AuthContext {
	t.Helper()
	auth, err := identity.NewAuthContext("user-"+tenantID.String()[:8], tenantID, nil, perms, nil)
	require.NoError(t, err)
	return auth
}

// NewBranchAuth builds an AuthContext restricted to branchID
func NewBranchAuth(t *testing.T, tenantID, branchID uuid.UUID, perms ...string) *identity.AuthContext {
	t.Helper()
	auth, err := identity.NewAuthContext("branch-user", tenantID, &branchID, perms, nil)
	require.NoError(t, err)
	return auth
}

// Dec parses a decimal literal and panics on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("clubledger/"+seed))
}

// TestTenantID is the club most fixtures belong to
func TestTenantID() uuid.UUID { return NewTestUUID("tenant/primary") }

// OtherTenantID is a second club used to prove isolation
func OtherTenantID() uuid.UUID { return NewTestUUID("tenant/other") }
