package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/domain/entities"
	apperrors "github.com/erboard/backend/pkg/errors"
)

var (
	t1 = time.Date(2024, 3, 5, 14, 0, 0, 0, kst)
	t2 = time.Date(2024, 3, 5, 14, 30, 0, 0, kst)
)

func reading(hpid string, at time.Time, generalAvail int) *entities.StagingReading {
	return &entities.StagingReading{
		HPID:       hpid,
		ObservedAt: at,
		General:    entities.BedCount{Available: intp(generalAvail), Total: intp(10)},
	}
}

func TestStagingService_ReplaceAll_DedupesAndDropsUnknown(t *testing.T) {
	ctx := context.Background()
	repo := new(MockStagingRepository)
	facilities := new(MockFacilityRepository)

	first := reading("A1", t1, 3)
	dup := reading("A1", t1, 7)
	later := reading("A1", t2, 5)
	unknown := reading("ZZ", t1, 1)

	facilities.On("IDsByHPID", ctx, []string{"A1", "ZZ"}).Return(map[string]int64{"A1": 1}, nil)
	repo.On("ReplaceAll", ctx, []*entities.StagingReading{first, later}).Return(nil)

	svc := services.NewStagingService(repo, facilities)
	summary, err := svc.ReplaceAll(ctx, []*entities.StagingReading{first, dup, unknown, later, unknown})

	require.NoError(t, err)
	assert.Equal(t, services.StagingSummary{Received: 5, Staged: 2, Dropped: 2, Duplicates: 1}, summary)
	repo.AssertExpectations(t)
}

func TestStagingService_ReplaceAll_PropagatesStoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockStagingRepository)
	facilities := new(MockFacilityRepository)

	facilities.On("IDsByHPID", ctx, []string{"A1"}).Return(map[string]int64{"A1": 1}, nil)
	repo.On("ReplaceAll", ctx, mock.Anything).Return(apperrors.NewInternalError("boom", errors.New("db down")))

	_, err := services.NewStagingService(repo, facilities).ReplaceAll(ctx, []*entities.StagingReading{reading("A1", t1, 1)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestLatestPerFacility_KeepsNewest(t *testing.T) {
	older := reading("A1", t1, 1)
	newer := reading("A1", t2, 9)
	other := reading("B2", t1, 4)

	latest := services.LatestPerFacility([]*entities.StagingReading{newer, older, other, nil})
	require.Len(t, latest, 2)
	assert.Same(t, newer, latest["A1"])
	assert.Same(t, other, latest["B2"])
}

func TestMergeService_MergeIntoCurrent_ReflectsLatestReading(t *testing.T) {
	ctx := context.Background()
	staging := new(MockStagingRepository)
	current := new(MockCurrentStatusRepository)
	facilities := new(MockFacilityRepository)

	staging.On("ListAll", ctx).Return([]*entities.StagingReading{
		reading("A1", t1, 1),
		reading("A1", t2, 9),
		{HPID: "B2"},
		reading("C3", t1, 2),
	}, nil)
	facilities.On("IDsByHPID", ctx, []string{"A1", "B2", "C3"}).Return(map[string]int64{"A1": 10, "B2": 20}, nil)

	var stored []*entities.CurrentStatus
	current.On("ReplaceAll", ctx, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).([]*entities.CurrentStatus)
	}).Return(nil)

	summary, err := services.NewMergeService(staging, current, facilities).MergeIntoCurrent(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, services.MergeSummary{StagingRows: 4, Created: 1, Skipped: 2}, summary)

	require.Len(t, stored, 1)
	assert.Equal(t, int64(10), stored[0].FacilityID)
	assert.True(t, stored[0].ObservedAt.Equal(t2))
	assert.Equal(t, 9, *stored[0].General.Available)
}

func TestMergeService_MergeIntoCurrent_AbortsOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	staging := new(MockStagingRepository)
	current := new(MockCurrentStatusRepository)
	facilities := new(MockFacilityRepository)

	staging.On("ListAll", ctx).Return([]*entities.StagingReading{reading("A1", t1, 1)}, nil)
	facilities.On("IDsByHPID", ctx, []string{"A1"}).Return(map[string]int64{"A1": 1}, nil)
	current.On("ReplaceAll", ctx, mock.Anything).Return(apperrors.NewConflictError("another merge holds the lock"))

	summary, err := services.NewMergeService(staging, current, facilities).MergeIntoCurrent(ctx, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Zero(t, summary.Created)
}

func TestBuildCurrentStatus(t *testing.T) {
	mergedAt := time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)
	r := &entities.StagingReading{
		HPID:          "A1",
		ObservedAt:    t2,
		DeliveryFlag:  strp("Y"),
		DeliveryTotal: intp(5),
		CTFlag:        strp("Y"),
		MRIFlag:       strp("N"),
		AngioFlag:     strp(""),
	}

	s := services.BuildCurrentStatus(7, r, &entities.BasicInfo{ObstetricFlag: boolp(false)}, mergedAt)
	assert.Equal(t, int64(7), s.FacilityID)
	assert.Equal(t, 5, *s.Delivery.Available)
	assert.Equal(t, 5, *s.Delivery.Total)
	assert.True(t, *s.HasDeliveryRoom)
	assert.True(t, *s.HasCT)
	assert.False(t, *s.HasMRI)
	assert.Nil(t, s.HasAngio)
	assert.Nil(t, s.HasVentilator)
	assert.Equal(t, mergedAt, s.MergedAt)
}

func TestBuildCurrentStatus_DeliveryHintOnlyWithoutTotal(t *testing.T) {
	r := &entities.StagingReading{HPID: "A1", ObservedAt: t1}

	s := services.BuildCurrentStatus(1, r, &entities.BasicInfo{ObstetricFlag: boolp(true)}, t1)
	require.NotNil(t, s.HasDeliveryRoom)
	assert.True(t, *s.HasDeliveryRoom)
	assert.Nil(t, s.Delivery.Available)

	s = services.BuildCurrentStatus(1, r, nil, t1)
	assert.Nil(t, s.HasDeliveryRoom)
}

func TestStatusFetcher_FetchRegions_SkipsFailedRegions(t *testing.T) {
	ctx := context.Background()
	provider := new(MockERDataProvider)
	facilities := new(MockFacilityRepository)

	seoul := entities.RegionPair{Sido: "서울특별시", Sigungu: "종로구"}
	busan := entities.RegionPair{Sido: "부산광역시", Sigungu: "중구"}
	daegu := entities.RegionPair{Sido: "대구광역시", Sigungu: "중구"}

	facilities.On("RegionPairs", ctx).Return([]entities.RegionPair{seoul, busan, seoul, daegu, {Sido: "세종특별자치시"}}, nil)
	provider.On("FetchRegion", mock.Anything, busan).Return([]*entities.StagingReading{reading("B1", t1, 1), reading("B2", t1, 2)}, nil)
	provider.On("FetchRegion", mock.Anything, daegu).Return(nil, apperrors.NewExternalError("timeout", context.DeadlineExceeded))
	provider.On("FetchRegion", mock.Anything, seoul).Return([]*entities.StagingReading{reading("S1", t1, 3)}, nil)

	fetcher := services.NewStatusFetcher(provider, facilities, nil, services.FetcherConfig{Workers: 2}, nil)

	pairs, err := fetcher.RegionPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entities.RegionPair{daegu, busan, seoul}, pairs)

	rows, err := fetcher.FetchRegions(ctx, pairs)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"B1", "B2", "S1"}, []string{rows[0].HPID, rows[1].HPID, rows[2].HPID})
	provider.AssertNumberOfCalls(t, "FetchRegion", 3)
}

func TestStatusFetcher_FetchRegions_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := new(MockERDataProvider)
	provider.On("FetchRegion", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	fetcher := services.NewStatusFetcher(provider, new(MockFacilityRepository), nil, services.FetcherConfig{}, nil)
	_, err := fetcher.FetchRegions(ctx, []entities.RegionPair{{Sido: "서울특별시", Sigungu: "중구"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusFetcher_FetchBasicInfo_UsesCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	provider := new(MockERDataProvider)

	provider.On("FetchBasicInfo", mock.Anything, "A1").Return(&entities.BasicInfo{HPID: "A1", ObstetricFlag: boolp(true)}, nil).Once()
	provider.On("FetchBasicInfo", mock.Anything, "B2").Return(nil, apperrors.NewExternalError("bad gateway", errors.New("502")))

	fetcher := services.NewStatusFetcher(provider, new(MockFacilityRepository), cache, services.FetcherConfig{BasicInfoTTL: time.Hour}, nil)

	got := fetcher.FetchBasicInfo(ctx, []string{"A1", "B2", "A1", ""})
	require.Len(t, got, 1)
	assert.True(t, *got["A1"].ObstetricFlag)
	assert.True(t, mr.Exists("er:basic:A1"))
	assert.Equal(t, time.Hour, mr.TTL("er:basic:A1"))

	// second lookup is served from cache; the provider expectation allows one call only
	got = fetcher.FetchBasicInfo(ctx, []string{"A1"})
	require.Contains(t, got, "A1")
	assert.True(t, *got["A1"].ObstetricFlag)
	provider.AssertNumberOfCalls(t, "FetchBasicInfo", 2)
}
