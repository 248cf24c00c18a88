package persistence

import (
	"context"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/membership"
	"gorm.io/gorm"
)

// NewBillingRepositories binds the billing repositories to db, which may be a transaction
func NewBillingRepositories(db *gorm.DB) billing.Repositories {
	return billing.Repositories{
		Invoices: NewGormInvoiceRepository(db),
		Payments: NewGormPaymentRepository(db),
		Refunds:  NewGormRefundRepository(db),
		Coupons:  NewGormCouponRepository(db),
	}
}

// NewMembershipRepositories binds the membership repositories to db
func NewMembershipRepositories(db *gorm.DB) membership.Repositories {
	return membership.Repositories{
		Memberships: NewGormMembershipRepository(db),
		Plans:       NewGormPlanRepository(db),
		Events:      NewGormLifecycleEventRepository(db),
	}
}

// BillingUnitOfWork implements billing.UnitOfWork with a GORM transaction
type BillingUnitOfWork struct {
	db *gorm.DB
}

// NewBillingUnitOfWork creates a new BillingUnitOfWork
func NewBillingUnitOfWork(db *gorm.DB) *BillingUnitOfWork {
	return &BillingUnitOfWork{db: db}
}

// Do runs fn in a transaction. Returning an error, or panicking, rolls back.
func (u *BillingUnitOfWork) Do(ctx context.Context, fn func(repos billing.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewBillingRepositories(tx))
	})
}

// MembershipUnitOfWork implements membership.UnitOfWork with a GORM transaction
type MembershipUnitOfWork struct {
	db *gorm.DB
}

// NewMembershipUnitOfWork creates a new MembershipUnitOfWork
func NewMembershipUnitOfWork(db *gorm.DB) *MembershipUnitOfWork {
	return &MembershipUnitOfWork{db: db}
}

// Do runs fn in a transaction
func (u *MembershipUnitOfWork) Do(ctx context.Context, fn func(repos membership.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewMembershipRepositories(tx))
	})
}
