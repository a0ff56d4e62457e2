package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Event, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Event, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Event, error)
	ListFeatured(ctx context.Context, db *gorm.DB) ([]Event, error)
}
