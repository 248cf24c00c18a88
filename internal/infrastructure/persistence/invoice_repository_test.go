package persistence

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createInvoice(t *testing.T, db *gorm.DB, tenantID uuid.UUID, branchID *uuid.UUID, number, total string) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(tenantID, branchID, number, nil, testutil.Dec(total), nil)
	require.NoError(t, err)
	require.NoError(t, NewGormInvoiceRepository(db).Create(context.Background(), inv))
	return inv
}

func TestGormInvoiceRepository_FindByIDScoping(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	tenantA := testutil.TestTenantID()
	tenantB := testutil.OtherTenantID()
	branch1 := testutil.NewTestUUID("branch-1")
	branch2 := testutil.NewTestUUID("branch-2")

	inBranch := createInvoice(t, db, tenantA, &branch1, "INV-1", "100")
	tenantWide := createInvoice(t, db, tenantA, nil, "INV-2", "50")

	t.Run("owner tenant sees its invoice", func(t *testing.T) {
		got, err := repo.FindByID(ctx, identity.Scope{TenantID: tenantA}, inBranch.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-1", got.InvoiceNumber)
		assert.True(t, got.TotalAmount.Equal(testutil.Dec("100")))
		assert.Equal(t, billing.InvoiceStatusDraft, got.Status)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("other tenant gets not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, identity.Scope{TenantID: tenantB}, inBranch.ID)
		assert.True(t, errors.Is(err, billing.ErrInvoiceNotFound))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("branch scoped actor", func(t *testing.T) {
		same := identity.Scope{TenantID: tenantA, BranchID: &branch1}
		other := identity.Scope{TenantID: tenantA, BranchID: &branch2}

		_, err := repo.FindByID(ctx, same, inBranch.ID)
		assert.NoError(t, err)
		_, err = repo.FindByID(ctx, other, inBranch.ID)
		assert.True(t, errors.Is(err, billing.ErrInvoiceNotFound))
		_, err = repo.FindByID(ctx, same, tenantWide.ID)
		assert.True(t, errors.Is(err, billing.ErrInvoiceNotFound))
	})

	t.Run("owner lookup crosses tenants", func(t *testing.T) {
		owner, err := repo.FindOwner(ctx, inBranch.ID)
		require.NoError(t, err)
		assert.Equal(t, tenantA, owner)

		_, err = repo.FindOwner(ctx, uuid.New())
		assert.True(t, errors.Is(err, billing.ErrInvoiceNotFound))
	})
}

func TestGormInvoiceRepository_CreateDuplicateNumber(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	tenantID := testutil.TestTenantID()
	createInvoice(t, db, tenantID, nil, "INV-20240101-0001", "10")

	dup, err := billing.NewInvoice(tenantID, nil, "INV-20240101-0001", nil, testutil.Dec("10"), nil)
	require.NoError(t, err)
	err = NewGormInvoiceRepository(db).Create(context.Background(), dup)
	assert.True(t, errors.Is(err, billing.ErrInvoiceNumberExists))

	other, err := billing.NewInvoice(testutil.OtherTenantID(), nil, "INV-20240101-0001", nil, testutil.Dec("10"), nil)
	require.NoError(t, err)
	assert.NoError(t, NewGormInvoiceRepository(db).Create(context.Background(), other))
}

func TestGormInvoiceRepository_SaveOptimistic(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	inv := createInvoice(t, db, tenantID, nil, "INV-1", "100")

	p, err := billing.NewCompletedPayment(inv, testutil.Dec("40"), billing.PaymentMethodCash, billing.GatewayRefs{}, "user-1")
	require.NoError(t, err)
	_, err = inv.AddPayment(billing.History{}, p)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, inv))

	got, err := repo.FindByID(ctx, identity.Scope{TenantID: tenantID}, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPartiallyPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(testutil.Dec("40")))
	assert.True(t, got.BalanceAmount.Equal(testutil.Dec("60")))
	assert.Equal(t, 2, got.Version)

	// a second writer holding the version-1 copy loses
	stale := *inv
	stale.Version = 2
	err = repo.Save(ctx, &stale)
	assert.True(t, errors.Is(err, shared.ErrConcurrentModification))
}

func TestGormInvoiceRepository_NextInvoiceSequence(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	day := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	for want := 1; want <= 3; want++ {
		got, err := repo.NextInvoiceSequence(ctx, testutil.TestTenantID(), day)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.NextInvoiceSequence(ctx, testutil.OtherTenantID(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, got, "sequences are per tenant")

	got, err = repo.NextInvoiceSequence(ctx, testutil.TestTenantID(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, got, "sequences restart each day")
}

func TestGormInvoiceRepository_NextInvoiceSequenceConcurrent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	uow := NewBillingUnitOfWork(db)
	day := time.Now().UTC()

	const workers = 8
	var (
		mu   sync.Mutex
		seen = map[int]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := uow.Do(context.Background(), func(repos billing.Repositories) error {
				n, err := repos.Invoices.NextInvoiceSequence(context.Background(), testutil.TestTenantID(), day)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[n] = true
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, seen[i], "missing sequence %d", i)
	}
}

func TestGormInvoiceRepository_FindByIDForUpdateSQL(t *testing.T) {
	mockDB := testutil.NewMockDB(t)

	tenantID := uuid.New()
	id := uuid.New()
	mockDB.Mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "invoices" WHERE tenant_id = $1 AND id = $2 ORDER BY "invoices"."id" LIMIT $3 FOR UPDATE`)).
		WithArgs(tenantID.String(), id.String(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "invoice_number", "currency", "total_amount", "paid_amount", "balance_amount", "status", "version"}).
			AddRow(id.String(), tenantID.String(), "INV-1", "EUR", "100", "0", "100", "DRAFT", 1))

	got, err := NewGormInvoiceRepository(mockDB.DB).FindByIDForUpdate(context.Background(), identity.Scope{TenantID: tenantID}, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "EUR", got.Currency)
	mockDB.ExpectationsWereMet(t)
}
