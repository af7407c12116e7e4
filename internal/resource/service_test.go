package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	created []*Resource
	filter  Filter
	types   []string
}

func (r *memRepo) Create(_ context.Context, res *Resource) error {
	res.ID = "res-1"
	r.created = append(r.created, res)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*Resource, error) {
	for _, res := range r.created {
		if res.ID == id {
			return res, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) List(_ context.Context, f Filter) ([]*Resource, int, error) {
	r.filter = f
	return r.created, len(r.created), nil
}

func (r *memRepo) ListTypes(context.Context) ([]string, error) {
	return r.types, nil
}

func TestCreate(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)

	res, err := svc.Create(context.Background(), CreateRequest{Name: "  Room 101 ", Type: " Room "})
	require.NoError(t, err)
	assert.Equal(t, "Room 101", res.Name)
	assert.Equal(t, "room", res.Type)
	assert.NotNil(t, res.Metadata)

	_, err = svc.Create(context.Background(), CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGetByIDNotFound(t *testing.T) {
	svc := NewService(&memRepo{})
	_, err := svc.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNormalizesType(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)

	_, _, err := svc.List(context.Background(), Filter{Type: " POOL ", Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, Filter{Type: "pool", Page: 2, PageSize: 5}, repo.filter)
}

func TestListTypesNeverNil(t *testing.T) {
	svc := NewService(&memRepo{})
	types, err := svc.ListTypes(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, types)
	assert.Empty(t, types)
}
