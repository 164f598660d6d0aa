package services

import (
	"context"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

// StagingSummary reports what a staging replace did with its input.
type StagingSummary struct {
	Received   int `json:"received"`
	Staged     int `json:"staged"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`
}

// StagingService owns the per-cycle raw snapshot table
type StagingService struct {
	repo       repositories.StagingRepository
	facilities repositories.FacilityRepository
}

// NewStagingService creates a new staging service
func NewStagingService(repo repositories.StagingRepository, facilities repositories.FacilityRepository) *StagingService {
	return &StagingService{
		repo:       repo,
		facilities: facilities,
	}
}

// ReplaceAll clears staging and stores rows. Rows for unknown facilities are
// dropped with a warning and the first row of each (hpid, observed_at) key wins.
func (s *StagingService) ReplaceAll(ctx context.Context, rows []*entities.StagingReading) (StagingSummary, error) {
	logger := observability.ComponentLogger(ctx, "staging")
	summary := StagingSummary{Received: len(rows)}

	hpids := make([]string, 0, len(rows))
	seenHPID := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		if _, ok := seenHPID[r.HPID]; ok {
			continue
		}
		seenHPID[r.HPID] = struct{}{}
		hpids = append(hpids, r.HPID)
	}

	known, err := s.facilities.IDsByHPID(ctx, hpids)
	if err != nil {
		return summary, err
	}

	accepted := make([]*entities.StagingReading, 0, len(rows))
	seenKey := make(map[entities.ReadingKey]struct{}, len(rows))
	warned := make(map[string]struct{})
	for _, r := range rows {
		if r == nil {
			summary.Dropped++
			continue
		}
		if _, ok := known[r.HPID]; !ok {
			summary.Dropped++
			if _, done := warned[r.HPID]; !done {
				warned[r.HPID] = struct{}{}
				logger.Warn().Str("hpid", r.HPID).Msg("dropping reading for unknown facility")
			}
			continue
		}
		key := r.Key()
		if _, dup := seenKey[key]; dup {
			summary.Duplicates++
			continue
		}
		seenKey[key] = struct{}{}
		accepted = append(accepted, r)
	}

	if err := s.repo.ReplaceAll(ctx, accepted); err != nil {
		return summary, err
	}
	summary.Staged = len(accepted)

	logger.Info().
		Int("received", summary.Received).
		Int("staged", summary.Staged).
		Int("dropped", summary.Dropped).
		Int("duplicates", summary.Duplicates).
		Msg("staging replaced")
	return summary, nil
}

// StagedHPIDs returns the facilities present in staging
func (s *StagingService) StagedHPIDs(ctx context.Context) ([]string, error) {
	return s.repo.DistinctHPIDs(ctx)
}
