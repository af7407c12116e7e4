package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound  = apperror.NotFound("resource not found")
	ErrEmptyName = apperror.New(http.StatusBadRequest, "name cannot be empty")
)

// Resource represents a bookable unit (e.g., Room 101, Pool Lane 3).
// Resources are immutable once created.
type Resource struct {
	ID        string
	Name      string
	Type      string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	Type     string
	Page     int
	PageSize int
}
