package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Event, error)
	List(ctx context.Context, activeOnly bool) ([]Event, error)
	// ListFeatured returns the active events flagged for the landing page.
	ListFeatured(ctx context.Context) ([]Event, error)
	GetBySlug(ctx context.Context, slug string) (*Event, error)
	// GetEventsByIDs resolves every id to an active event or fails with
	// ErrEventNotFound; callers rely on the all-or-nothing contract.
	GetEventsByIDs(ctx context.Context, ids []snowflake.ID) ([]Event, error)
}

type CreateRequest struct {
	Title                     string              `json:"title"`
	Location                  string              `json:"location"`
	StartDate                 *time.Time          `json:"start_date"`
	EndDate                   *time.Time          `json:"end_date"`
	Price                     decimal.Decimal     `json:"price"`
	Currency                  string              `json:"currency"`
	Featured                  bool                `json:"featured"`
	EarlyBirdDate             *time.Time          `json:"early_bird_date"`
	EarlyBirdDiscountPercent  decimal.NullDecimal `json:"early_bird_discount_percent"`
	StudentDiscountPercent    decimal.NullDecimal `json:"student_discount_percent"`
	MultiEventDiscountPercent decimal.NullDecimal `json:"multi_event_discount_percent"`
}

var (
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrSlugTaken       = errors.New("slug_taken")
	ErrNotFound        = errors.New("not_found")
	ErrEventNotFound   = errors.New("event_not_found")
)
