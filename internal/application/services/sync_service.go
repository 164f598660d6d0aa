package services

import (
	"context"
	"time"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

// CycleSummary reports one ingestion cycle.
type CycleSummary struct {
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration_ns"`
	Regions    int            `json:"regions"`
	Fetched    int            `json:"fetched"`
	Staging    StagingSummary `json:"staging"`
	BasicInfos int            `json:"basic_infos"`
	Merge      MergeSummary   `json:"merge"`
}

// SyncService runs ingestion cycles: fetch, stage, merge, notify.
type SyncService struct {
	fetcher  *StatusFetcher
	staging  *StagingService
	merge    *MergeService
	messages *MessageService
	regions  *RegionService
	eventBus providers.EventBus
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewSyncService creates a new sync service. regions, eventBus and metrics may be nil.
func NewSyncService(
	fetcher *StatusFetcher,
	staging *StagingService,
	merge *MergeService,
	messages *MessageService,
	regions *RegionService,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *SyncService {
	return &SyncService{
		fetcher:  fetcher,
		staging:  staging,
		merge:    merge,
		messages: messages,
		regions:  regions,
		eventBus: eventBus,
		metrics:  metrics,
		now:      time.Now,
	}
}

// RunCycle performs one full ingestion cycle. Per-region upstream failures
// only shrink the snapshot; database failures abort the cycle.
func (s *SyncService) RunCycle(ctx context.Context) (summary *CycleSummary, err error) {
	ctx, span := observability.StartSpan(ctx, "sync.cycle")
	defer span.End()

	logger := observability.ComponentLogger(ctx, "sync")
	summary = &CycleSummary{StartedAt: s.now().UTC()}
	defer func() {
		summary.Duration = s.now().Sub(summary.StartedAt)
		observability.RecordSyncCycle(ctx, s.metrics, summary.Duration, err)
		observability.RecordError(span, err)
	}()

	pairs, err := s.fetcher.RegionPairs(ctx)
	if err != nil {
		return summary, err
	}
	summary.Regions = len(pairs)

	rows, err := s.fetcher.FetchRegions(ctx, pairs)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(rows)
	observability.RecordSyncStage(ctx, s.metrics, "fetch", len(rows))

	summary.Staging, err = s.staging.ReplaceAll(ctx, rows)
	if err != nil {
		return summary, err
	}
	observability.RecordSyncStage(ctx, s.metrics, "stage", summary.Staging.Staged)

	hpids, err := s.staging.StagedHPIDs(ctx)
	if err != nil {
		return summary, err
	}
	hints := s.fetcher.FetchBasicInfo(ctx, hpids)
	summary.BasicInfos = len(hints)

	summary.Merge, err = s.merge.MergeIntoCurrent(ctx, hints)
	if err != nil {
		return summary, err
	}
	observability.RecordSyncStage(ctx, s.metrics, "merge", summary.Merge.Created)

	event := entities.NewStatusEvent(entities.StatusEventRefreshed)
	event.Created = summary.Merge.Created
	event.Skipped = summary.Merge.Skipped
	s.publish(ctx, event)
	s.invalidate(ctx)

	logger.Info().
		Int("regions", summary.Regions).
		Int("fetched", summary.Fetched).
		Int("staged", summary.Staging.Staged).
		Int("created", summary.Merge.Created).
		Int("skipped", summary.Merge.Skipped).
		Dur("duration", s.now().Sub(summary.StartedAt)).
		Msg("ingestion cycle complete")
	return summary, nil
}

// MergeOnly rebuilds current status from what is already staged.
func (s *SyncService) MergeOnly(ctx context.Context) (MergeSummary, error) {
	hpids, err := s.staging.StagedHPIDs(ctx)
	if err != nil {
		return MergeSummary{}, err
	}
	summary, err := s.merge.MergeIntoCurrent(ctx, s.fetcher.FetchBasicInfo(ctx, hpids))
	if err != nil {
		return summary, err
	}

	event := entities.NewStatusEvent(entities.StatusEventRefreshed)
	event.Created = summary.Created
	event.Skipped = summary.Skipped
	s.publish(ctx, event)
	return summary, nil
}

// SyncMessages refreshes advisory messages and notifies subscribers when any changed.
func (s *SyncService) SyncMessages(ctx context.Context) (MessageSummary, error) {
	summary, err := s.messages.SyncMessages(ctx)
	if err != nil {
		return summary, err
	}
	if summary.Updated > 0 {
		event := entities.NewStatusEvent(entities.StatusEventMessagesUpdated)
		event.Updated = summary.Updated
		s.publish(ctx, event)
	}
	return summary, nil
}

func (s *SyncService) publish(ctx context.Context, event *entities.StatusEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelStatus, event); err != nil {
		observability.ComponentLogger(ctx, "sync").Warn().Err(err).Str("event", string(event.Type)).Msg("failed to publish status event")
	}
}

func (s *SyncService) invalidate(ctx context.Context) {
	if s.regions == nil {
		return
	}
	if err := s.regions.Invalidate(ctx); err != nil {
		observability.ComponentLogger(ctx, "sync").Warn().Err(err).Msg("failed to invalidate region index")
	}
}
