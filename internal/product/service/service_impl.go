package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/money"
	"github.com/oakline/storefront/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	guildID := strings.TrimSpace(req.GuildID)
	if guildID == "" {
		return nil, domain.ErrInvalidGuild
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	roleID := strings.TrimSpace(req.GrantRoleID)
	if roleID == "" {
		return nil, domain.ErrInvalidRole
	}

	description := strings.TrimSpace(ptrToString(req.Description))
	var descriptionPtr *string
	if description != "" {
		descriptionPtr = &description
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate().Int64(),
		GuildID:     guildID,
		Name:        name,
		Description: descriptionPtr,
		GrantRoleID: roleID,
		Prices:      datatypes.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		return nil, err
	}

	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, guildID, id string) (*domain.Response, error) {
	item, err := s.find(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, guildID string) ([]domain.Response, error) {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return nil, domain.ErrInvalidGuild
	}

	items, err := s.repo.List(ctx, s.db, guildID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.toResponse(&item))
	}
	return resp, nil
}

func (s *Service) SetPrice(ctx context.Context, req domain.SetPriceRequest) (*domain.Response, error) {
	if !money.ValidPlan(req.Plan) {
		return nil, money.ErrInvalidPlan
	}

	minor, err := money.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	item, err := s.find(ctx, req.GuildID, req.ID)
	if err != nil {
		return nil, err
	}

	if item.Prices == nil {
		item.Prices = datatypes.JSONMap{}
	}
	item.Prices[string(req.Plan)] = minor
	item.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdatePrices(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) UnsetPrice(ctx context.Context, guildID, id string, plan money.PlanKey) (*domain.Response, error) {
	if !money.ValidPlan(plan) {
		return nil, money.ErrInvalidPlan
	}

	item, err := s.find(ctx, guildID, id)
	if err != nil {
		return nil, err
	}

	delete(item.Prices, string(plan))
	item.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdatePrices(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) find(ctx context.Context, guildID, id string) (*domain.Product, error) {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return nil, domain.ErrInvalidGuild
	}

	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, guildID, productID.Int64())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) toResponse(p *domain.Product) domain.Response {
	resp := domain.Response{
		ID:           snowflake.ID(p.ID).String(),
		GuildID:      p.GuildID,
		Name:         p.Name,
		Description:  p.Description,
		GrantRoleID:  p.GrantRoleID,
		EnabledPlans: money.EnabledPlans(p.Prices),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if len(p.Prices) > 0 {
		resp.Prices = map[string]any(p.Prices)
	}
	return resp
}

func ptrToString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
