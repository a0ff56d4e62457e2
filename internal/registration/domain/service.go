package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Registration, error)
	Get(ctx context.Context, id snowflake.ID, userID string) (*Registration, error)
	ListByUser(ctx context.Context, userID string) ([]Registration, error)
	Delete(ctx context.Context, id snowflake.ID, userID string) error
}

// Participant is one extra attendee on a group registration. The primary
// registrant is implicit, so group size is len(participants)+1.
type Participant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type CreateRequest struct {
	UserID            string         `json:"-"`
	RegistrationType  string         `json:"registration_type"`
	EventIDs          []snowflake.ID `json:"event_ids"`
	PersonalInfo      map[string]any `json:"personal_info"`
	OrganizationInfo  map[string]any `json:"organization_info"`
	GroupParticipants []Participant  `json:"group_participants"`
}

var (
	ErrEmptyEventSelection     = errors.New("empty_event_selection")
	ErrInvalidRegistrationType = errors.New("invalid_registration_type")
	ErrMixedCurrencies         = errors.New("mixed_currencies")
	ErrNotFound                = errors.New("registration_not_found")
	ErrNotOwner                = errors.New("not_owner")
	ErrPaymentMade             = errors.New("payment_made")
)
