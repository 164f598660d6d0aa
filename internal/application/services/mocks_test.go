package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/erboard/backend/internal/adapters/cache"
	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/domain/repositories"
	redisclient "github.com/erboard/backend/internal/infrastructure/clients/redis"
)

type MockFacilityRepository struct {
	mock.Mock
}

func (m *MockFacilityRepository) GetByID(ctx context.Context, id int64) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityRepository) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityRepository) IDsByHPID(ctx context.Context, hpids []string) (map[string]int64, error) {
	args := m.Called(ctx, hpids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockFacilityRepository) RegionPairs(ctx context.Context) ([]entities.RegionPair, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RegionPair), args.Error(1)
}

func (m *MockFacilityRepository) Sigungus(ctx context.Context, sidoVariants []string) ([]string, error) {
	args := m.Called(ctx, sidoVariants)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockStagingRepository struct {
	mock.Mock
}

func (m *MockStagingRepository) ReplaceAll(ctx context.Context, rows []*entities.StagingReading) error {
	return m.Called(ctx, rows).Error(0)
}

func (m *MockStagingRepository) ListAll(ctx context.Context) ([]*entities.StagingReading, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StagingReading), args.Error(1)
}

func (m *MockStagingRepository) DistinctHPIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockCurrentStatusRepository struct {
	mock.Mock
}

func (m *MockCurrentStatusRepository) ReplaceAll(ctx context.Context, rows []*entities.CurrentStatus) error {
	return m.Called(ctx, rows).Error(0)
}

func (m *MockCurrentStatusRepository) GetByFacilityID(ctx context.Context, facilityID int64) (*entities.CurrentStatus, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CurrentStatus), args.Error(1)
}

func (m *MockCurrentStatusRepository) ListByFacilityIDs(ctx context.Context, facilityIDs []int64) (map[int64]*entities.CurrentStatus, error) {
	args := m.Called(ctx, facilityIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*entities.CurrentStatus), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) UpsertIfNewer(ctx context.Context, msg *entities.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) GetByFacilityID(ctx context.Context, facilityID int64) (*entities.Message, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Message), args.Error(1)
}

type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockSearchRepository) Index(ctx context.Context, facility *entities.Facility, hasStatus bool) error {
	return m.Called(ctx, facility, hasStatus).Error(0)
}

func (m *MockSearchRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockERDataProvider struct {
	mock.Mock
}

func (m *MockERDataProvider) FetchRegion(ctx context.Context, region entities.RegionPair) ([]*entities.StagingReading, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.StagingReading), args.Error(1)
}

func (m *MockERDataProvider) FetchBasicInfo(ctx context.Context, hpid string) (*entities.BasicInfo, error) {
	args := m.Called(ctx, hpid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BasicInfo), args.Error(1)
}

func (m *MockERDataProvider) FetchMessages(ctx context.Context, hpid string) ([]*entities.Message, error) {
	args := m.Called(ctx, hpid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Message), args.Error(1)
}

// MockEventBus records published events and feeds subscribers from a channel.
type MockEventBus struct {
	mu        sync.Mutex
	published []*entities.StatusEvent
	ch        chan *entities.StatusEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{ch: make(chan *entities.StatusEvent, 8)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.StatusEvent, error) {
	return m.ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) Published() []*entities.StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.StatusEvent, len(m.published))
	copy(out, m.published)
	return out
}

var _ providers.EventBus = (*MockEventBus)(nil)

func newTestCache(t *testing.T) (providers.CacheProvider, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return cache.NewRedisAdapter(redisclient.NewFromClient(rdb), ""), mr
}

func intp(v int) *int { return &v }

func boolp(v bool) *bool { return &v }

func strp(v string) *string { return &v }

func floatp(v float64) *float64 { return &v }

var kst = time.FixedZone("KST", 9*60*60)
