package services

import (
	"context"
	"sort"
	"time"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/utils"
)

// MergeSummary reports the outcome of one merge.
type MergeSummary struct {
	StagingRows int `json:"staging_rows"`
	Created     int `json:"created"`
	Skipped     int `json:"skipped"`
}

// MergeService folds the staging snapshot into the current status table
type MergeService struct {
	staging    repositories.StagingRepository
	current    repositories.CurrentStatusRepository
	facilities repositories.FacilityRepository
	now        func() time.Time
}

// NewMergeService creates a new merge service
func NewMergeService(
	staging repositories.StagingRepository,
	current repositories.CurrentStatusRepository,
	facilities repositories.FacilityRepository,
) *MergeService {
	return &MergeService{
		staging:    staging,
		current:    current,
		facilities: facilities,
		now:        time.Now,
	}
}

// MergeIntoCurrent rebuilds the current status table from staging. Each
// facility gets the reading with the latest observed_at; facilities absent
// from staging lose their row. hints carries basic info by hpid and may be nil.
func (m *MergeService) MergeIntoCurrent(ctx context.Context, hints map[string]*entities.BasicInfo) (MergeSummary, error) {
	logger := observability.ComponentLogger(ctx, "merge")

	rows, err := m.staging.ListAll(ctx)
	if err != nil {
		return MergeSummary{}, err
	}
	summary := MergeSummary{StagingRows: len(rows)}

	latest := LatestPerFacility(rows)
	hpids := make([]string, 0, len(latest))
	for hpid := range latest {
		hpids = append(hpids, hpid)
	}
	sort.Strings(hpids)

	ids, err := m.facilities.IDsByHPID(ctx, hpids)
	if err != nil {
		return summary, err
	}

	mergedAt := m.now().UTC()
	statuses := make([]*entities.CurrentStatus, 0, len(hpids))
	for _, hpid := range hpids {
		r := latest[hpid]
		id, ok := ids[hpid]
		if !ok || r.ObservedAt.IsZero() {
			summary.Skipped++
			logger.Warn().Str("hpid", hpid).Bool("known_facility", ok).Msg("skipping malformed staging row")
			continue
		}
		statuses = append(statuses, BuildCurrentStatus(id, r, hints[hpid], mergedAt))
	}

	if err := m.current.ReplaceAll(ctx, statuses); err != nil {
		return summary, err
	}
	summary.Created = len(statuses)

	logger.Info().
		Int("staging_rows", summary.StagingRows).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Msg("current status replaced")
	return summary, nil
}

// LatestPerFacility deduplicates rows by (hpid, observed_at) and keeps the
// newest reading of every hpid. Ties keep the first row seen.
func LatestPerFacility(rows []*entities.StagingReading) map[string]*entities.StagingReading {
	seen := make(map[entities.ReadingKey]struct{}, len(rows))
	latest := make(map[string]*entities.StagingReading)
	for _, r := range rows {
		if r == nil || r.HPID == "" {
			continue
		}
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		cur, ok := latest[r.HPID]
		if !ok || r.ObservedAt.After(cur.ObservedAt) {
			latest[r.HPID] = r
		}
	}
	return latest
}

// BuildCurrentStatus derives the durable status of a facility from its
// latest reading. hint may be nil.
func BuildCurrentStatus(facilityID int64, r *entities.StagingReading, hint *entities.BasicInfo, mergedAt time.Time) *entities.CurrentStatus {
	s := &entities.CurrentStatus{
		FacilityID:       facilityID,
		ObservedAt:       r.ObservedAt,
		General:          r.General,
		Child:            r.Child,
		Delivery:         entities.ParseDeliveryRoom(r.DeliveryFlag, r.DeliveryTotal),
		NegativePressure: r.NegativePressure,
		IsolationGeneral: r.IsolationGeneral,
		IsolationCohort:  r.IsolationCohort,
		HasCT:            flagToBool(r.CTFlag),
		HasMRI:           flagToBool(r.MRIFlag),
		HasAngio:         flagToBool(r.AngioFlag),
		HasVentilator:    flagToBool(r.VentilatorFlag),
		MergedAt:         mergedAt,
	}

	switch {
	case r.DeliveryTotal != nil:
		s.HasDeliveryRoom = utils.BoolPtr(*r.DeliveryTotal > 0)
	case hint != nil && hint.ObstetricFlag != nil:
		s.HasDeliveryRoom = utils.BoolPtr(*hint.ObstetricFlag)
	}
	return s
}

func flagToBool(raw *string) *bool {
	if raw == nil {
		return nil
	}
	return utils.YNToBool(*raw)
}
