package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GormTransactor is the PostgreSQL Transactor.
type GormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithTx joins the transaction already carried by ctx, or opens a new one.
func (t *GormTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, t.db, fn)
}

// WithTx runs fn in a transaction stored on the context passed to fn.
// Repositories pick it up through Conn. Nested calls reuse the outer transaction.
func WithTx(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn returns the transaction bound to ctx, or db scoped to ctx.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}
