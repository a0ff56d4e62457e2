package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment status values a registration can carry. Succeeded is terminal for
// the totals; failed and cancelled only mirror the provider outcome.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Registration is the aggregate root for one signup. Totals are major
// currency units; the discount is locked in at creation and never recomputed.
type Registration struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID            string          `json:"user_id" gorm:"type:text;not null;index"`
	RegistrationType  string          `json:"registration_type" gorm:"type:text;not null"`
	SelectedEvents    datatypes.JSON  `json:"selected_events" gorm:"type:jsonb;not null"`
	PersonalInfo      datatypes.JSON  `json:"personal_info,omitempty" gorm:"type:jsonb"`
	OrganizationInfo  datatypes.JSON  `json:"organization_info,omitempty" gorm:"type:jsonb"`
	GroupParticipants datatypes.JSON  `json:"group_participants,omitempty" gorm:"type:jsonb"`
	GroupSize         int             `json:"group_size" gorm:"not null;default:1"`
	Currency          string          `json:"currency" gorm:"type:text;not null"`
	TotalAmount       decimal.Decimal `json:"total_amount" gorm:"type:numeric;not null"`
	PaidAmount        decimal.Decimal `json:"paid_amount" gorm:"type:numeric;not null"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount" gorm:"type:numeric;not null"`
	DiscountApplied   *string         `json:"discount_applied,omitempty" gorm:"type:text"`
	DiscountAmount    decimal.Decimal `json:"discount_amount" gorm:"type:numeric;not null"`
	PaymentStatus     string          `json:"payment_status" gorm:"type:text;not null;default:'pending'"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null"`
}

func (Registration) TableName() string { return "registrations" }

// SelectedEventIDs decodes the stored event selection. Ids are persisted as
// strings so JSON consumers never lose snowflake precision.
func (r *Registration) SelectedEventIDs() ([]snowflake.ID, error) {
	var raw []string
	if err := json.Unmarshal(r.SelectedEvents, &raw); err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(raw))
	for _, s := range raw {
		id, err := snowflake.ParseString(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EncodeEventIDs is the inverse of SelectedEventIDs.
func EncodeEventIDs(ids []snowflake.ID) (datatypes.JSON, error) {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(buf), nil
}
