package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reg *Registration) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Registration, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]Registration, error)
	// DeleteIfUnpaid removes the row only while paid_amount is still zero
	// and reports whether a row was deleted.
	DeleteIfUnpaid(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// UpdatePayment persists only the reconciliation columns. Everything
	// priced at creation stays immutable.
	UpdatePayment(ctx context.Context, db *gorm.DB, reg *Registration) error
}
