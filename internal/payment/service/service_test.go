package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auditdomain "github.com/smallbiznis/summit/internal/audit/domain"
	auditrepository "github.com/smallbiznis/summit/internal/audit/repository"
	auditservice "github.com/smallbiznis/summit/internal/audit/service"
	"github.com/smallbiznis/summit/internal/clock"
	"github.com/smallbiznis/summit/internal/config"
	"github.com/smallbiznis/summit/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/summit/internal/payment/domain"
	"github.com/smallbiznis/summit/internal/payment/repository"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	regrepository "github.com/smallbiznis/summit/internal/registration/repository"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock *clock.FakeClock
	svc   paymentdomain.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&regdomain.Registration{},
		&paymentdomain.LedgerEntry{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	m, err := metrics.New(metrics.Config{ServiceName: "test"}, metricnoop.NewMeterProvider())
	require.NoError(t, err)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})

	svc := New(Params{
		DB:            gdb,
		Log:           log,
		GenID:         node,
		Clock:         fake,
		Repo:          repository.Provide(),
		Registrations: regrepository.Provide(),
		Pricing:       config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
		Audit:         auditSvc,
		Metrics:       m,
	})

	return &env{db: gdb, genID: node, clock: fake, svc: svc}
}

func (e *env) seedRegistration(t *testing.T, userID, total string) *regdomain.Registration {
	t.Helper()
	amount := decimal.RequireFromString(total)
	reg := &regdomain.Registration{
		ID:               e.genID.Generate(),
		UserID:           userID,
		RegistrationType: "consultancy",
		SelectedEvents:   []byte(`[]`),
		GroupSize:        1,
		Currency:         "EUR",
		TotalAmount:      amount,
		PaidAmount:       decimal.Zero,
		RemainingAmount:  amount,
		DiscountAmount:   decimal.Zero,
		PaymentStatus:    regdomain.PaymentStatusPending,
		CreatedAt:        e.clock.Now(),
		UpdatedAt:        e.clock.Now(),
	}
	require.NoError(t, e.db.Create(reg).Error)
	return reg
}

func (e *env) ledgerCount(t *testing.T, regID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&paymentdomain.LedgerEntry{}).
		Where("registration_id = ?", regID).Count(&count).Error)
	return count
}

func TestApplyInstallments(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "360")

	got, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_1",
		Amount:           decimal.RequireFromString("200"),
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "200", got.PaidAmount.String())
	assert.Equal(t, "160", got.RemainingAmount.String())
	assert.Equal(t, regdomain.PaymentStatusPending, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)

	got, err = e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_2",
		Amount:           decimal.RequireFromString("160"),
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "360", got.PaidAmount.String())
	assert.True(t, got.RemainingAmount.IsZero())
	assert.Equal(t, regdomain.PaymentStatusSucceeded, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)

	assert.EqualValues(t, 2, e.ledgerCount(t, reg.ID))
}

func TestApplyIdempotent(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "360")

	_, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_first",
		Amount:           decimal.RequireFromString("200"),
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	})
	require.NoError(t, err)

	closing := paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_second",
		Amount:           decimal.RequireFromString("160"),
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	}
	settled, err := e.svc.Apply(context.Background(), closing)
	require.NoError(t, err)
	assert.Equal(t, regdomain.PaymentStatusSucceeded, settled.PaymentStatus)

	replay, err := e.svc.Apply(context.Background(), closing)
	require.NoError(t, err)
	assert.Equal(t, "360", replay.PaidAmount.String())
	assert.True(t, replay.RemainingAmount.IsZero())
	assert.Equal(t, regdomain.PaymentStatusSucceeded, replay.PaymentStatus)
	assert.EqualValues(t, 2, e.ledgerCount(t, reg.ID))
}

func TestApplyRejectsBadAmounts(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "360")

	_, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_zero",
		Amount:           decimal.Zero,
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_neg",
		Amount:           decimal.RequireFromString("-50"),
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	// 400 on 360 exceeds the 1% tolerance ceiling of 363.6.
	_, err = e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_over",
		Amount:           decimal.RequireFromString("400"),
		Status:           regdomain.PaymentStatusSucceeded,
		Installment:      true,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	assert.EqualValues(t, 0, e.ledgerCount(t, reg.ID))

	var current regdomain.Registration
	require.NoError(t, e.db.First(&current, "id = ?", reg.ID).Error)
	assert.True(t, current.PaidAmount.IsZero())
	assert.Equal(t, "360", current.RemainingAmount.String())
}

func TestApplyFinalSuccess(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "500")

	got, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_final",
		Amount:           decimal.RequireFromString("500"),
		Status:           regdomain.PaymentStatusSucceeded,
	})
	require.NoError(t, err)
	assert.Equal(t, "500", got.PaidAmount.String())
	assert.True(t, got.RemainingAmount.IsZero())
	assert.Equal(t, regdomain.PaymentStatusSucceeded, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, e.clock.Now(), got.PaidAt.UTC())
}

func TestApplyFinalFailureMirrorsStatus(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "500")

	got, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_fail",
		Amount:           decimal.RequireFromString("500"),
		Status:           regdomain.PaymentStatusFailed,
	})
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.IsZero())
	assert.Equal(t, "500", got.RemainingAmount.String())
	assert.Equal(t, regdomain.PaymentStatusFailed, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)

	// failures still land in the ledger, without a recorded_at
	entries, err := e.svc.History(context.Background(), reg.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, regdomain.PaymentStatusFailed, entries[0].Status)
	assert.Nil(t, entries[0].RecordedAt)
}

func TestPaidAtFirstSuccessWins(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "100")

	first, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_a",
		Amount:           decimal.RequireFromString("100"),
		Status:           regdomain.PaymentStatusSucceeded,
	})
	require.NoError(t, err)
	require.NotNil(t, first.PaidAt)
	paidAt := *first.PaidAt

	e.clock.Advance(time.Hour)
	second, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_b",
		Amount:           decimal.RequireFromString("100"),
		Status:           regdomain.PaymentStatusSucceeded,
	})
	require.NoError(t, err)
	require.NotNil(t, second.PaidAt)
	assert.Equal(t, paidAt, *second.PaidAt)
}

func TestApplyValidatesNotification(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "100")

	_, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID: reg.ID,
		Amount:         decimal.RequireFromString("50"),
		Status:         regdomain.PaymentStatusSucceeded,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidNotification)

	_, err = e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_x",
		Amount:           decimal.RequireFromString("50"),
		Status:           "refunded",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidNotification)

	_, err = e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   reg.ID,
		ProviderChargeID: "ch_currency",
		Amount:           decimal.RequireFromString("50"),
		Currency:         "USD",
		Status:           regdomain.PaymentStatusSucceeded,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidNotification)

	_, err = e.svc.Apply(context.Background(), paymentdomain.Notification{
		RegistrationID:   e.genID.Generate(),
		ProviderChargeID: "ch_missing",
		Amount:           decimal.RequireFromString("50"),
		Status:           regdomain.PaymentStatusSucceeded,
	})
	assert.ErrorIs(t, err, regdomain.ErrNotFound)
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "300")

	for i, amount := range []string{"100", "50"} {
		e.clock.Advance(time.Minute)
		_, err := e.svc.Apply(context.Background(), paymentdomain.Notification{
			RegistrationID:   reg.ID,
			ProviderChargeID: fmt.Sprintf("ch_%d", i),
			Amount:           decimal.RequireFromString(amount),
			Status:           regdomain.PaymentStatusSucceeded,
			Installment:      true,
		})
		require.NoError(t, err)
	}

	entries, err := e.svc.History(context.Background(), reg.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "100", entries[0].Amount.String())
	assert.Equal(t, "50", entries[1].Amount.String())

	_, err = e.svc.History(context.Background(), reg.ID, "user-2")
	assert.ErrorIs(t, err, regdomain.ErrNotOwner)
}

func TestValidateCharge(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "100")

	assert.NoError(t, e.svc.ValidateCharge(context.Background(), reg.ID, "user-1", 5000))

	assert.ErrorIs(t, e.svc.ValidateCharge(context.Background(), reg.ID, "user-1", 50),
		paymentdomain.ErrInvalidAmount)
	assert.ErrorIs(t, e.svc.ValidateCharge(context.Background(), reg.ID, "user-1", 10001),
		paymentdomain.ErrInvalidAmount)
	assert.ErrorIs(t, e.svc.ValidateCharge(context.Background(), reg.ID, "user-2", 5000),
		regdomain.ErrNotOwner)
	assert.ErrorIs(t, e.svc.ValidateCharge(context.Background(), e.genID.Generate(), "user-1", 5000),
		regdomain.ErrNotFound)
}

func TestApplyConcurrentInstallments(t *testing.T) {
	e := newEnv(t)
	reg := e.seedRegistration(t, "user-1", "80")

	const workers = 8
	amount := decimal.RequireFromString("10")

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Apply(context.Background(), paymentdomain.Notification{
				RegistrationID:   reg.ID,
				ProviderChargeID: fmt.Sprintf("ch_worker_%d", i),
				Amount:           amount,
				Status:           regdomain.PaymentStatusSucceeded,
				Installment:      true,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	var got regdomain.Registration
	require.NoError(t, e.db.First(&got, "id = ?", reg.ID).Error)
	assert.Equal(t, "80", got.PaidAmount.String())
	assert.True(t, got.RemainingAmount.IsZero())
	assert.Equal(t, regdomain.PaymentStatusSucceeded, got.PaymentStatus)
	assert.EqualValues(t, workers, e.ledgerCount(t, reg.ID))
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := newKeyedMutex()
	id := snowflake.ID(42)

	var wg sync.WaitGroup
	var held int64
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(id)
			if atomic.AddInt64(&held, 1) != 1 {
				t.Error("lock held by more than one goroutine")
			}
			atomic.AddInt64(&held, -1)
			unlock()
		}()
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
