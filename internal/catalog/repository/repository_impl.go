package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *catalogdomain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]catalogdomain.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []catalogdomain.Event
	err := db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*catalogdomain.Event, error) {
	slug = strings.TrimSpace(slug)
	var event catalogdomain.Event
	err := db.WithContext(ctx).
		Where("slug = ?", slug).
		Limit(1).
		Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) ListFeatured(ctx context.Context, db *gorm.DB) ([]catalogdomain.Event, error) {
	var items []catalogdomain.Event
	err := db.WithContext(ctx).
		Where("is_active = ? AND featured = ?", true, true).
		Order("start_date ASC, created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]catalogdomain.Event, error) {
	query := db.WithContext(ctx).Order("start_date ASC, created_at ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var items []catalogdomain.Event
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
