package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/summit/internal/audit/domain"
	"github.com/smallbiznis/summit/internal/clock"
	"github.com/smallbiznis/summit/internal/config"
	"github.com/smallbiznis/summit/internal/lock"
	"github.com/smallbiznis/summit/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/summit/internal/payment/domain"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	"github.com/smallbiznis/summit/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockTTL = 10 * time.Second

// errReplayedCharge signals that another writer recorded the same charge
// between our duplicate check and the ledger insert.
var errReplayedCharge = errors.New("replayed_charge")

var one = decimal.NewFromInt(1)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          paymentdomain.Repository
	Registrations regdomain.Repository
	Pricing       *config.PricingConfigHolder
	Audit         auditdomain.Service
	Metrics       *metrics.Metrics
	Locker        *lock.Locker `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    paymentdomain.Repository
	regs    regdomain.Repository
	pricing *config.PricingConfigHolder
	audit   auditdomain.Service
	metrics *metrics.Metrics
	locker  *lock.Locker
	locks   *keyedMutex
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		regs:    p.Registrations,
		pricing: p.Pricing,
		audit:   p.Audit,
		metrics: p.Metrics,
		locker:  p.Locker,
		locks:   newKeyedMutex(),
	}
}

func validStatus(status string) bool {
	switch status {
	case regdomain.PaymentStatusPending,
		regdomain.PaymentStatusSucceeded,
		regdomain.PaymentStatusFailed,
		regdomain.PaymentStatusCancelled:
		return true
	}
	return false
}

func (s *Service) Apply(ctx context.Context, n paymentdomain.Notification) (*regdomain.Registration, error) {
	n.ProviderChargeID = strings.TrimSpace(n.ProviderChargeID)
	if n.RegistrationID == 0 || n.ProviderChargeID == "" || !validStatus(n.Status) {
		return nil, paymentdomain.ErrInvalidNotification
	}

	unlock := s.locks.Lock(n.RegistrationID)
	defer unlock()

	release, err := s.locker.Guard(ctx, "summit:payment:"+n.RegistrationID.String(), lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, paymentdomain.ErrRegistrationBusy
		}
		return nil, err
	}
	defer release()

	var (
		result    *regdomain.Registration
		duplicate bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByChargeID(ctx, tx, n.ProviderChargeID)
		if err != nil {
			return err
		}
		reg, err := s.regs.FindByID(ctx, tx, n.RegistrationID)
		if err != nil {
			return err
		}
		if existing != nil {
			duplicate = true
			result = reg
			return nil
		}
		if n.Currency != "" && !strings.EqualFold(n.Currency, reg.Currency) {
			return paymentdomain.ErrInvalidNotification
		}

		now := s.clock.Now()
		if n.Installment {
			if err := s.applyInstallment(reg, n, now); err != nil {
				return err
			}
		} else {
			s.applyFinal(reg, n, now)
		}

		entry := &paymentdomain.LedgerEntry{
			ID:               s.genID.Generate(),
			RegistrationID:   n.RegistrationID,
			ProviderChargeID: n.ProviderChargeID,
			Amount:           n.Amount,
			Status:           n.Status,
			CreatedAt:        now,
		}
		if n.Status == regdomain.PaymentStatusSucceeded {
			entry.RecordedAt = &now
		}
		if err := s.repo.Insert(ctx, tx, entry); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errReplayedCharge
			}
			return err
		}

		reg.UpdatedAt = now
		if err := s.regs.UpdatePayment(ctx, tx, reg); err != nil {
			return err
		}
		result = reg
		return nil
	})
	if errors.Is(err, errReplayedCharge) {
		// Lost the insert race to a concurrent writer. The charge is
		// already applied, so report the current state.
		return s.regs.FindByID(ctx, s.db, n.RegistrationID)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaymentNotification(ctx, n.Status, n.Installment)
	if duplicate {
		s.log.Info("duplicate payment notification ignored",
			zap.String("registration_id", n.RegistrationID.String()),
			zap.String("provider_charge_id", n.ProviderChargeID),
		)
		return result, nil
	}
	s.metrics.RecordLedgerEntry(ctx, n.Status)

	action := "payment.received"
	if !n.Installment && n.Status != regdomain.PaymentStatusSucceeded {
		action = "payment.failed"
	}
	regID := n.RegistrationID.String()
	_ = s.audit.AuditLog(ctx, nil, action, "registration", &regID, map[string]any{
		"provider_charge_id": n.ProviderChargeID,
		"amount":             n.Amount.String(),
		"status":             n.Status,
		"installment":        n.Installment,
	})

	s.log.Info("payment notification applied",
		zap.String("registration_id", regID),
		zap.String("provider_charge_id", n.ProviderChargeID),
		zap.String("status", n.Status),
		zap.Bool("installment", n.Installment),
		zap.String("paid_amount", result.PaidAmount.String()),
		zap.String("remaining_amount", result.RemainingAmount.String()),
	)
	return result, nil
}

// applyInstallment adds a partial payment to the running totals. The provider
// only sends installment notifications for captured charges, so the amount is
// applied regardless of the mirrored status string.
func (s *Service) applyInstallment(reg *regdomain.Registration, n paymentdomain.Notification, now time.Time) error {
	if !n.Amount.IsPositive() {
		return paymentdomain.ErrInvalidAmount
	}

	newPaid := reg.PaidAmount.Add(n.Amount)
	tolerance := decimal.NewFromFloat(s.pricing.Get().OverpayTolerance)
	if newPaid.GreaterThan(reg.TotalAmount.Mul(one.Add(tolerance))) {
		return paymentdomain.ErrInvalidAmount
	}

	reg.PaidAmount = newPaid
	remaining := reg.TotalAmount.Sub(newPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	reg.RemainingAmount = remaining

	if remaining.IsZero() {
		reg.PaymentStatus = regdomain.PaymentStatusSucceeded
		if reg.PaidAt == nil {
			reg.PaidAt = &now
		}
	} else {
		reg.PaymentStatus = regdomain.PaymentStatusPending
	}
	return nil
}

// applyFinal settles the whole balance on success; any other outcome only
// mirrors the provider status and leaves the totals untouched.
func (s *Service) applyFinal(reg *regdomain.Registration, n paymentdomain.Notification, now time.Time) {
	if n.Status == regdomain.PaymentStatusSucceeded {
		reg.PaidAmount = reg.TotalAmount
		reg.RemainingAmount = decimal.Zero
		reg.PaymentStatus = regdomain.PaymentStatusSucceeded
		if reg.PaidAt == nil {
			reg.PaidAt = &now
		}
		return
	}
	reg.PaymentStatus = n.Status
}

func (s *Service) History(ctx context.Context, registrationID snowflake.ID, userID string) ([]paymentdomain.LedgerEntry, error) {
	reg, err := s.regs.FindByID(ctx, s.db, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.UserID != userID {
		return nil, regdomain.ErrNotOwner
	}
	return s.repo.ListByRegistration(ctx, s.db, registrationID)
}

func (s *Service) ValidateCharge(ctx context.Context, registrationID snowflake.ID, userID string, minorAmount int64) error {
	reg, err := s.regs.FindByID(ctx, s.db, registrationID)
	if err != nil {
		return err
	}
	if reg.UserID != userID {
		return regdomain.ErrNotOwner
	}
	if minorAmount < s.pricing.Get().MinChargeMinorUnits {
		return paymentdomain.ErrInvalidAmount
	}
	amount := decimal.New(minorAmount, -2)
	if amount.GreaterThan(reg.RemainingAmount) {
		return paymentdomain.ErrInvalidAmount
	}
	return nil
}
