package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
	"github.com/smallbiznis/summit/internal/clock"
	"github.com/smallbiznis/summit/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  catalogdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  catalogdomain.Repository
}

func New(p Params) catalogdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req catalogdomain.CreateRequest) (*catalogdomain.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, catalogdomain.ErrInvalidTitle
	}
	if req.Price.IsNegative() {
		return nil, catalogdomain.ErrInvalidPrice
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, catalogdomain.ErrInvalidCurrency
	}

	now := s.clock.Now()
	entity := &catalogdomain.Event{
		ID:                        s.genID.Generate(),
		Title:                     title,
		Slug:                      slug.Make(title),
		Location:                  strings.TrimSpace(req.Location),
		StartDate:                 req.StartDate,
		EndDate:                   req.EndDate,
		Price:                     req.Price,
		Currency:                  currency,
		IsActive:                  true,
		Featured:                  req.Featured,
		EarlyBirdDate:             req.EarlyBirdDate,
		EarlyBirdDiscountPercent:  req.EarlyBirdDiscountPercent,
		StudentDiscountPercent:    req.StudentDiscountPercent,
		MultiEventDiscountPercent: req.MultiEventDiscountPercent,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrSlugTaken
		}
		return nil, err
	}

	return entity, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]catalogdomain.Event, error) {
	return s.repo.List(ctx, s.db, activeOnly)
}

func (s *Service) ListFeatured(ctx context.Context) ([]catalogdomain.Event, error) {
	return s.repo.ListFeatured(ctx, s.db)
}

func (s *Service) GetBySlug(ctx context.Context, slugValue string) (*catalogdomain.Event, error) {
	entity, err := s.repo.FindBySlug(ctx, s.db, slugValue)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) GetEventsByIDs(ctx context.Context, ids []snowflake.ID) ([]catalogdomain.Event, error) {
	events, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	if len(events) != len(dedupe(ids)) {
		s.log.Warn("event selection contains unknown or inactive ids",
			zap.Int("requested", len(ids)),
			zap.Int("resolved", len(events)),
		)
		return nil, catalogdomain.ErrEventNotFound
	}
	return events, nil
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
