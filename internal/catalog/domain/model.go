package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Event is a catalog entry a registration can select. Prices are major
// currency units; discount percents are nullable and fall back to the
// configured defaults when unset.
type Event struct {
	ID                        snowflake.ID        `json:"id" gorm:"primaryKey"`
	Title                     string              `json:"title" gorm:"type:text;not null"`
	Slug                      string              `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Location                  string              `json:"location" gorm:"type:text"`
	StartDate                 *time.Time          `json:"start_date,omitempty"`
	EndDate                   *time.Time          `json:"end_date,omitempty"`
	Price                     decimal.Decimal     `json:"price" gorm:"type:numeric;not null"`
	Currency                  string              `json:"currency" gorm:"type:text;not null"`
	IsActive                  bool                `json:"is_active" gorm:"not null;default:true"`
	Featured                  bool                `json:"featured" gorm:"not null;default:false"`
	EarlyBirdDate             *time.Time          `json:"early_bird_date,omitempty"`
	EarlyBirdDiscountPercent  decimal.NullDecimal `json:"early_bird_discount_percent" gorm:"type:numeric"`
	StudentDiscountPercent    decimal.NullDecimal `json:"student_discount_percent" gorm:"type:numeric"`
	MultiEventDiscountPercent decimal.NullDecimal `json:"multi_event_discount_percent" gorm:"type:numeric"`
	CreatedAt                 time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt                 time.Time           `json:"updated_at" gorm:"not null"`
}

func (Event) TableName() string { return "events" }
