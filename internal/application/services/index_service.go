package services

import (
	"context"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/utils"
)

// IndexSummary reports a reindex run.
type IndexSummary struct {
	Facilities int `json:"facilities"`
	Indexed    int `json:"indexed"`
	Failed     int `json:"failed"`
}

// IndexService keeps the search index in step with the facility table
type IndexService struct {
	facilities repositories.FacilityRepository
	current    repositories.CurrentStatusRepository
	search     repositories.FacilitySearchRepository
}

// NewIndexService creates a new index service
func NewIndexService(
	facilities repositories.FacilityRepository,
	current repositories.CurrentStatusRepository,
	search repositories.FacilitySearchRepository,
) *IndexService {
	return &IndexService{
		facilities: facilities,
		current:    current,
		search:     search,
	}
}

// Reindex upserts every facility into the search index
func (s *IndexService) Reindex(ctx context.Context) (IndexSummary, error) {
	logger := observability.ComponentLogger(ctx, "indexer")

	facilities, err := s.facilities.List(ctx, repositories.FacilityFilter{})
	if err != nil {
		return IndexSummary{}, err
	}
	statuses, err := s.current.ListByFacilityIDs(ctx, nil)
	if err != nil {
		return IndexSummary{}, err
	}

	summary := IndexSummary{Facilities: len(facilities)}
	for _, f := range facilities {
		if err := s.search.Index(ctx, f, statuses[f.ID].HasAnyData()); err != nil {
			logger.Warn().Err(err).Int64("facility_id", f.ID).Msg("failed to index facility")
			summary.Failed++
			continue
		}
		summary.Indexed++
	}

	logger.Info().Int("indexed", summary.Indexed).Int("failed", summary.Failed).Msg("reindex complete")
	return summary, nil
}

// Search runs a full text query, optionally restricted to a province under any spelling
func (s *IndexService) Search(ctx context.Context, query, sido string, limit int) ([]*entities.Facility, error) {
	params := repositories.SearchParams{Query: query, Limit: limit}
	if utils.IsRegionSelected(sido) {
		params.SidoIn = utils.SidoVariants(sido)
	}
	return s.search.Search(ctx, params)
}
