package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	"gorm.io/gorm"
)

// LedgerEntry is one provider notification recorded against a registration.
// The table is append-only; provider_charge_id carries the idempotency
// guarantee through its unique index.
type LedgerEntry struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	RegistrationID   snowflake.ID    `json:"registration_id" gorm:"not null;index"`
	ProviderChargeID string          `json:"provider_charge_id" gorm:"type:text;not null;uniqueIndex"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric;not null"`
	Status           string          `json:"status" gorm:"type:text;not null"`
	RecordedAt       *time.Time      `json:"recorded_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "payment_ledger" }

// Notification is a provider charge outcome, amounts already converted to
// major currency units.
type Notification struct {
	RegistrationID   snowflake.ID
	ProviderChargeID string
	Amount           decimal.Decimal
	// Currency is optional; when present it must match the registration.
	Currency    string
	Status      string
	Installment bool
}

type Service interface {
	// Apply reconciles one notification into the registration's totals and
	// returns the post-apply state. Replays of an already recorded charge
	// return the current state unchanged.
	Apply(ctx context.Context, n Notification) (*regdomain.Registration, error)
	History(ctx context.Context, registrationID snowflake.ID, userID string) ([]LedgerEntry, error)
	ValidateCharge(ctx context.Context, registrationID snowflake.ID, userID string, minorAmount int64) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	FindByChargeID(ctx context.Context, db *gorm.DB, providerChargeID string) (*LedgerEntry, error)
	ListByRegistration(ctx context.Context, db *gorm.DB, registrationID snowflake.ID) ([]LedgerEntry, error)
}

var (
	ErrInvalidNotification = errors.New("invalid_notification")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrRegistrationBusy    = errors.New("registration_busy")
)
