package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/summit/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
	"github.com/smallbiznis/summit/internal/clock"
	"github.com/smallbiznis/summit/internal/config"
	"github.com/smallbiznis/summit/internal/observability/metrics"
	"github.com/smallbiznis/summit/internal/pricing"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    regdomain.Repository
	Catalog catalogdomain.Service
	Pricing *config.PricingConfigHolder
	Audit   auditdomain.Service
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    regdomain.Repository
	catalog catalogdomain.Service
	pricing *config.PricingConfigHolder
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) regdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("registration.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		catalog: p.Catalog,
		pricing: p.Pricing,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req regdomain.CreateRequest) (*regdomain.Registration, error) {
	typ := pricing.RegistrationType(req.RegistrationType)
	if typ != pricing.TypeConsultancy && typ != pricing.TypeStudentGuest {
		return nil, regdomain.ErrInvalidRegistrationType
	}
	if len(req.EventIDs) == 0 {
		return nil, regdomain.ErrEmptyEventSelection
	}

	events, err := s.catalog.GetEventsByIDs(ctx, req.EventIDs)
	if err != nil {
		return nil, err
	}

	currency := events[0].Currency
	for _, event := range events[1:] {
		if event.Currency != currency {
			s.log.Warn("event selection spans currencies",
				zap.String("user_id", req.UserID),
				zap.String("currency", currency),
				zap.String("other", event.Currency),
			)
			return nil, regdomain.ErrMixedCurrencies
		}
	}

	groupSize := len(req.GroupParticipants) + 1
	now := s.clock.Now()
	quote := pricing.Compute(events, typ, groupSize, now, pricing.DefaultsFromConfig(s.pricing.Get()))

	selected, err := regdomain.EncodeEventIDs(req.EventIDs)
	if err != nil {
		return nil, err
	}
	personal, err := encodeJSON(req.PersonalInfo)
	if err != nil {
		return nil, err
	}
	organization, err := encodeJSON(req.OrganizationInfo)
	if err != nil {
		return nil, err
	}
	participants, err := encodeJSON(req.GroupParticipants)
	if err != nil {
		return nil, err
	}

	reg := &regdomain.Registration{
		ID:                s.genID.Generate(),
		UserID:            req.UserID,
		RegistrationType:  string(typ),
		SelectedEvents:    selected,
		PersonalInfo:      personal,
		OrganizationInfo:  organization,
		GroupParticipants: participants,
		GroupSize:         groupSize,
		Currency:          currency,
		TotalAmount:       quote.FinalAmount,
		PaidAmount:        decimal.Zero,
		RemainingAmount:   quote.FinalAmount,
		DiscountAmount:    quote.DiscountAmount,
		PaymentStatus:     regdomain.PaymentStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if quote.DiscountType != pricing.DiscountNone {
		applied := string(quote.DiscountType)
		reg.DiscountApplied = &applied
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, reg)
	})
	if err != nil {
		return nil, err
	}

	regID := reg.ID.String()
	_ = s.audit.AuditLog(ctx, &req.UserID, "registration.created", "registration", &regID, map[string]any{
		"registration_type": reg.RegistrationType,
		"group_size":        reg.GroupSize,
		"total_amount":      reg.TotalAmount.String(),
		"discount_applied":  quote.DiscountType,
	})
	s.metrics.RecordRegistration(ctx, reg.RegistrationType)

	s.log.Info("registration created",
		zap.String("registration_id", regID),
		zap.String("user_id", req.UserID),
		zap.String("registration_type", reg.RegistrationType),
		zap.String("total_amount", reg.TotalAmount.String()),
	)
	return reg, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID, userID string) (*regdomain.Registration, error) {
	reg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if reg.UserID != userID {
		return nil, regdomain.ErrNotOwner
	}
	return reg, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]regdomain.Registration, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, userID string) error {
	reg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if reg.UserID != userID {
		return regdomain.ErrNotOwner
	}
	if reg.PaidAmount.GreaterThan(decimal.Zero) {
		return regdomain.ErrPaymentMade
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The paid guard above ran outside this transaction; a
		// reconciliation commit may have landed since, so the delete
		// itself re-checks paid_amount.
		deleted, err := s.repo.DeleteIfUnpaid(ctx, tx, id)
		if err != nil {
			return err
		}
		if !deleted {
			if _, err := s.repo.FindByID(ctx, tx, id); err != nil {
				return err
			}
			return regdomain.ErrPaymentMade
		}
		return nil
	})
	if err != nil {
		return err
	}

	regID := id.String()
	_ = s.audit.AuditLog(ctx, &userID, "registration.deleted", "registration", &regID, nil)
	s.log.Info("registration deleted",
		zap.String("registration_id", regID),
		zap.String("user_id", userID),
	)
	return nil
}

func encodeJSON(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	buf, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(buf), nil
}
