package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/summit/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *paymentdomain.LedgerEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindByChargeID(ctx context.Context, db *gorm.DB, providerChargeID string) (*paymentdomain.LedgerEntry, error) {
	var entry paymentdomain.LedgerEntry
	err := db.WithContext(ctx).Where("provider_charge_id = ?", providerChargeID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) ListByRegistration(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) ([]paymentdomain.LedgerEntry, error) {
	var entries []paymentdomain.LedgerEntry
	err := db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
