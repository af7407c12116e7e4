package resource

import (
	"context"
	"strings"
)

type CreateRequest struct {
	Name     string
	Type     string
	Metadata map[string]any
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	ListTypes(ctx context.Context) ([]string, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	res := &Resource{
		Name:     name,
		Type:     strings.ToLower(strings.TrimSpace(req.Type)),
		Metadata: metadata,
	}

	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	filter.Type = strings.ToLower(strings.TrimSpace(filter.Type))
	return s.repo.List(ctx, filter)
}

func (s *service) ListTypes(ctx context.Context) ([]string, error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}
