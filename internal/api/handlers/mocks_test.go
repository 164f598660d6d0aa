package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/domain/entities"
)

type MockDashboard struct {
	mock.Mock
}

func (m *MockDashboard) Dashboard(ctx context.Context, prefs entities.Preferences, origin *entities.Location) (*services.DashboardResult, error) {
	args := m.Called(ctx, prefs, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DashboardResult), args.Error(1)
}

func (m *MockDashboard) Detail(ctx context.Context, facilityID int64) (*entities.FacilityDetail, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FacilityDetail), args.Error(1)
}

type MockPreferences struct {
	mock.Mock
}

func (m *MockPreferences) Get(ctx context.Context, sessionID string) (entities.Preferences, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(entities.Preferences), args.Error(1)
}

func (m *MockPreferences) Apply(ctx context.Context, sessionID string, action entities.PreferenceAction) (entities.Preferences, error) {
	args := m.Called(ctx, sessionID, action)
	return args.Get(0).(entities.Preferences), args.Error(1)
}

type MockRegions struct {
	mock.Mock
}

func (m *MockRegions) RegionIndex(ctx context.Context) (map[string][]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

func (m *MockRegions) Sigungu(ctx context.Context, sido string) ([]string, error) {
	args := m.Called(ctx, sido)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query, sido string, limit int) ([]*entities.Facility, error) {
	args := m.Called(ctx, query, sido, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

type MockSyncRunner struct {
	mock.Mock
}

func (m *MockSyncRunner) RunCycle(ctx context.Context) (*services.CycleSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CycleSummary), args.Error(1)
}

func (m *MockSyncRunner) SyncMessages(ctx context.Context) (services.MessageSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.MessageSummary), args.Error(1)
}

type MockReindexer struct {
	mock.Mock
}

func (m *MockReindexer) Reindex(ctx context.Context) (services.IndexSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.IndexSummary), args.Error(1)
}
