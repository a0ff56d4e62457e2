package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() regdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reg *regdomain.Registration) error {
	return db.WithContext(ctx).Create(reg).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*regdomain.Registration, error) {
	var reg regdomain.Registration
	err := db.WithContext(ctx).Where("id = ?", id).First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, regdomain.ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]regdomain.Registration, error) {
	var regs []regdomain.Registration
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&regs).Error
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *repo) DeleteIfUnpaid(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).
		Where("id = ? AND paid_amount = 0", id).
		Delete(&regdomain.Registration{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, reg *regdomain.Registration) error {
	return db.WithContext(ctx).
		Model(&regdomain.Registration{}).
		Where("id = ?", reg.ID).
		Updates(map[string]any{
			"paid_amount":      reg.PaidAmount,
			"remaining_amount": reg.RemainingAmount,
			"payment_status":   reg.PaymentStatus,
			"paid_at":          reg.PaidAt,
			"updated_at":       reg.UpdatedAt,
		}).Error
}
