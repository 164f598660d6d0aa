package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/domain/entities"
	apperrors "github.com/erboard/backend/pkg/errors"
)

func TestApplyAction(t *testing.T) {
	base := entities.Preferences{
		Sort:          entities.SortDistance,
		Sido:          "경기도",
		Sigungu:       "수원시",
		EmergencyType: entities.CategoryStroke,
		Filters:       map[string]string{"ct": "1"},
	}

	tests := []struct {
		name    string
		action  entities.PreferenceAction
		want    entities.Preferences
		wantErr bool
	}{
		{
			name:   "reset clears everything",
			action: entities.PreferenceAction{Action: entities.ActionReset},
			want:   entities.Preferences{},
		},
		{
			name:   "sort clears category and filters",
			action: entities.PreferenceAction{Action: entities.ActionSort, Sort: entities.SortScore},
			want:   entities.Preferences{Sort: entities.SortScore, Sido: "경기도", Sigungu: "수원시"},
		},
		{
			name:   "region keeps the rest",
			action: entities.PreferenceAction{Action: entities.ActionRegion, Sido: "부산광역시"},
			want: entities.Preferences{
				Sort:          entities.SortDistance,
				Sido:          "부산광역시",
				EmergencyType: entities.CategoryStroke,
				Filters:       map[string]string{"ct": "1"},
			},
		},
		{
			name:   "filter clears sort",
			action: entities.PreferenceAction{Action: entities.ActionFilter, EmergencyType: entities.CategoryObstetrics, Filters: map[string]string{"delivery": "1"}},
			want: entities.Preferences{
				Sido:          "경기도",
				Sigungu:       "수원시",
				EmergencyType: entities.CategoryObstetrics,
				Filters:       map[string]string{"delivery": "1"},
			},
		},
		{
			name:    "unknown sort",
			action:  entities.PreferenceAction{Action: entities.ActionSort, Sort: "rating"},
			wantErr: true,
		},
		{
			name:    "unknown emergency type",
			action:  entities.PreferenceAction{Action: entities.ActionFilter, EmergencyType: "burn"},
			wantErr: true,
		},
		{
			name:    "unknown action",
			action:  entities.PreferenceAction{Action: "zoom"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := services.ApplyAction(base, tt.action)
			if tt.wantErr {
				assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyAction_CopiesFilters(t *testing.T) {
	filters := map[string]string{"mri": "1"}
	got, err := services.ApplyAction(entities.Preferences{}, entities.PreferenceAction{Action: entities.ActionFilter, Filters: filters})
	require.NoError(t, err)

	filters["ct"] = "1"
	assert.Equal(t, map[string]string{"mri": "1"}, got.Filters)
}

func TestPreferenceService_PersistsPerSession(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	svc := services.NewPreferenceService(cache)

	prefs, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entities.Preferences{}, prefs)

	_, err = svc.Apply(ctx, "s1", entities.PreferenceAction{Action: entities.ActionRegion, Sido: "경북", Sigungu: "포항시"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("prefs:s1"))
	assert.Greater(t, mr.TTL("prefs:s1").Hours(), 24.0*29)

	prefs, err = svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "경북", prefs.Sido)
	assert.Equal(t, "경북 포항시", prefs.RegionSummary())

	other, err := svc.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "전체 지역", other.RegionSummary())
}

func TestPreferenceService_CorruptEntryFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("prefs:s1", "{not json"))

	prefs, err := services.NewPreferenceService(cache).Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entities.Preferences{}, prefs)
}

func TestPreferenceService_RequiresSession(t *testing.T) {
	cache, _ := newTestCache(t)
	_, err := services.NewPreferenceService(cache).Apply(context.Background(), "", entities.PreferenceAction{Action: entities.ActionReset})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
