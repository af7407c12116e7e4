package http

import (
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/seat-booking-backend/internal/resource"
)

type ResourceResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ResourceResponse{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Metadata:  metadata,
		CreatedAt: r.CreatedAt,
	}
}

// ListResourcesRequest defines query parameters for listing resources.
type ListResourcesRequest struct {
	request.ListParams
	Type string `form:"type"`
}

type CreateRequest struct {
	Name     string         `json:"name" binding:"required"`
	Type     string         `json:"type" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

type TypesResponse struct {
	Types []string `json:"types"`
}
