package repositories

import (
	"context"

	"github.com/erboard/backend/internal/domain/entities"
)

// FacilityRepository defines read access to imported emergency rooms
type FacilityRepository interface {
	// GetByID retrieves a facility by ID
	GetByID(ctx context.Context, id int64) (*entities.Facility, error)

	// List retrieves facilities, optionally restricted to a set of province spellings and a district
	List(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// IDsByHPID resolves external ids to internal ids; unknown hpids are absent from the result
	IDsByHPID(ctx context.Context, hpids []string) (map[string]int64, error)

	// RegionPairs returns the distinct (sido, sigungu) pairs ordered by sido then sigungu
	RegionPairs(ctx context.Context) ([]entities.RegionPair, error)

	// Sigungus returns the distinct districts of any of the given province spellings, ordered
	Sigungus(ctx context.Context, sidoVariants []string) ([]string, error)
}

// FacilityFilter restricts facility listings
type FacilityFilter struct {
	SidoIn  []string
	Sigungu string
	Limit   int
}

// FacilitySearchRepository defines the interface for the full text facility index
type FacilitySearchRepository interface {
	// Search searches facilities
	Search(ctx context.Context, params SearchParams) ([]*entities.Facility, error)

	// Index upserts a facility; hasStatus marks whether it currently reports beds
	Index(ctx context.Context, facility *entities.Facility, hasStatus bool) error

	// Delete removes a facility from index
	Delete(ctx context.Context, id int64) error
}

// SearchParams holds full text search parameters
type SearchParams struct {
	Query  string
	SidoIn []string
	Limit  int
}
