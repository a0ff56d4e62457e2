package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auditdomain "github.com/smallbiznis/summit/internal/audit/domain"
	auditrepository "github.com/smallbiznis/summit/internal/audit/repository"
	auditservice "github.com/smallbiznis/summit/internal/audit/service"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/summit/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/summit/internal/catalog/service"
	"github.com/smallbiznis/summit/internal/clock"
	"github.com/smallbiznis/summit/internal/config"
	"github.com/smallbiznis/summit/internal/observability"
	"github.com/smallbiznis/summit/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/summit/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/summit/internal/payment/repository"
	paymentservice "github.com/smallbiznis/summit/internal/payment/service"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	regrepository "github.com/smallbiznis/summit/internal/registration/repository"
	regservice "github.com/smallbiznis/summit/internal/registration/service"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	genID  *snowflake.Node
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&catalogdomain.Event{},
		&regdomain.Registration{},
		&paymentdomain.LedgerEntry{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	holder := config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())

	m, err := metrics.New(metrics.Config{ServiceName: "test"}, metricnoop.NewMeterProvider())
	require.NoError(t, err)

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo: catalogrepository.Provide(),
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo: auditrepository.Provide(),
	})
	registrationSvc := regservice.New(regservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo:    regrepository.Provide(),
		Catalog: catalogSvc,
		Pricing: holder,
		Audit:   auditSvc,
		Metrics: m,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo:          paymentrepository.Provide(),
		Registrations: regrepository.Provide(),
		Pricing:       holder,
		Audit:         auditSvc,
		Metrics:       m,
	})

	engine := NewEngine(observability.Config{LogLevel: "info"})
	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{HTTPAddr: ":0"},
		DB:              gdb,
		Log:             log,
		GenID:           node,
		CatalogSvc:      catalogSvc,
		RegistrationSvc: registrationSvc,
		PaymentSvc:      paymentSvc,
		AuditSvc:        auditSvc,
		ObsMetrics:      m,
	})

	return &testServer{engine: engine, db: gdb, genID: node, clock: fake}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	return ts.doWithRole(t, method, path, userID, "", body)
}

func (ts *testServer) doWithRole(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) seedEvent(t *testing.T, price string) catalogdomain.Event {
	t.Helper()
	event := catalogdomain.Event{
		ID:        ts.genID.Generate(),
		Title:     fmt.Sprintf("Event %d", ts.genID.Generate()),
		Slug:      fmt.Sprintf("event-%d", ts.genID.Generate()),
		Price:     decimal.RequireFromString(price),
		Currency:  "EUR",
		IsActive:  true,
		CreatedAt: ts.clock.Now(),
		UpdatedAt: ts.clock.Now(),
	}
	require.NoError(t, ts.db.Create(&event).Error)
	return event
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegistrationsRequireIdentity(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/registrations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateEventRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/events", "user-1", gin.H{
		"title": "Ops Summit", "price": "100", "currency": "EUR",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegistrationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	a := ts.seedEvent(t, "250")
	b := ts.seedEvent(t, "350")

	w := ts.do(t, http.MethodPost, "/api/registrations", "user-1", gin.H{
		"registration_type": "consultancy",
		"event_ids":         []string{a.ID.String(), b.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created regdomain.Registration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "360", created.TotalAmount.String())

	path := "/api/registrations/" + created.ID.String()

	w = ts.do(t, http.MethodGet, path, "user-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// another identity may not read or delete it
	w = ts.do(t, http.MethodGet, path, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodDelete, path, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodDelete, path, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, path, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRegistrationValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/registrations", "user-1", gin.H{
		"registration_type": "consultancy",
		"event_ids":         []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/registrations", "user-1", gin.H{
		"registration_type": "consultancy",
		"event_ids":         []string{"not-a-snowflake"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhookAndDeleteGuard(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedEvent(t, "300")

	w := ts.do(t, http.MethodPost, "/api/registrations", "user-1", gin.H{
		"registration_type": "consultancy",
		"event_ids":         []string{event.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created regdomain.Registration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	notification := gin.H{
		"registration_id":    created.ID.String(),
		"provider_charge_id": "ch_123",
		"amount_minor":       10000,
		"status":             "succeeded",
		"installment":        true,
	}
	w = ts.do(t, http.MethodPost, "/webhooks/payments", "", notification)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// provider retries answer 200 without double counting
	w = ts.do(t, http.MethodPost, "/webhooks/payments", "", notification)
	require.Equal(t, http.StatusOK, w.Code)

	var current regdomain.Registration
	require.NoError(t, ts.db.First(&current, "id = ?", created.ID).Error)
	assert.Equal(t, "100", current.PaidAmount.String())

	w = ts.do(t, http.MethodDelete, "/api/registrations/"+created.ID.String(), "user-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/registrations/"+created.ID.String()+"/payments/validate", "user-1", gin.H{
		"amount_minor": 20000,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/registrations/"+created.ID.String()+"/payments/validate", "user-1", gin.H{
		"amount_minor": 50,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/registrations/"+created.ID.String()+"/payments", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Payments []paymentdomain.LedgerEntry `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Payments, 1)
}

func TestEventsAPI(t *testing.T) {
	ts := newTestServer(t)
	event := ts.seedEvent(t, "100")

	w := ts.do(t, http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/events/"+event.Slug, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/events/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, ts.db.Model(&catalogdomain.Event{}).
		Where("id = ?", event.ID).Update("featured", true).Error)

	w = ts.do(t, http.MethodGet, "/api/events/featured", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var featured struct {
		Events []catalogdomain.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &featured))
	require.Len(t, featured.Events, 1)
	assert.Equal(t, event.Slug, featured.Events[0].Slug)
}

func TestAuditTrailEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doWithRole(t, http.MethodPost, "/api/events", "admin-1", "admin", gin.H{
		"title": "Audit Summit", "price": "100", "currency": "EUR",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var event catalogdomain.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))

	path := "/api/audit?target_type=event&target_id=" + event.ID.String()

	w = ts.do(t, http.MethodGet, path, "user-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.doWithRole(t, http.MethodGet, path, "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		AuditLogs []auditdomain.AuditLog `json:"audit_logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload.AuditLogs, 1)
	assert.Equal(t, "event.created", payload.AuditLogs[0].Action)

	w = ts.doWithRole(t, http.MethodGet, "/api/audit", "admin-1", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
