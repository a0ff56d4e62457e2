package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/summit/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
	"github.com/smallbiznis/summit/internal/config"
	"github.com/smallbiznis/summit/internal/observability"
	obsmiddleware "github.com/smallbiznis/summit/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/summit/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/summit/internal/payment/domain"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	catalogSvc      catalogdomain.Service
	registrationSvc regdomain.Service
	paymentSvc      paymentdomain.Service
	auditSvc        auditdomain.Service
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	CatalogSvc      catalogdomain.Service
	RegistrationSvc regdomain.Service
	PaymentSvc      paymentdomain.Service
	AuditSvc        auditdomain.Service
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		catalogSvc:      p.CatalogSvc,
		registrationSvc: p.RegistrationSvc,
		paymentSvc:      p.PaymentSvc,
		auditSvc:        p.AuditSvc,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/events", s.ListEvents)
	api.GET("/events/featured", s.ListFeaturedEvents)
	api.GET("/events/:slug", s.GetEvent)
	api.POST("/events", s.RequireUser(), s.RequireAdmin(), s.CreateEvent)

	api.GET("/audit", s.RequireUser(), s.RequireAdmin(), s.ListAuditLogs)

	authed := api.Group("", s.RequireUser())
	authed.POST("/registrations", s.CreateRegistration)
	authed.GET("/registrations", s.ListRegistrations)
	authed.GET("/registrations/:id", s.GetRegistration)
	authed.DELETE("/registrations/:id", s.DeleteRegistration)
	authed.POST("/registrations/:id/payments/validate", s.ValidatePayment)
	authed.GET("/registrations/:id/payments", s.ListPayments)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments", s.HandlePaymentWebhook)
}
