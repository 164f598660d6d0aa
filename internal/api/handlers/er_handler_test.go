package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erboard/backend/internal/api/handlers"
	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/domain/entities"
	apperrors "github.com/erboard/backend/pkg/errors"
)

type erFixture struct {
	dashboard *MockDashboard
	prefs     *MockPreferences
	regions   *MockRegions
	search    *MockSearcher
	handler   *handlers.ERHandler
}

func newERFixture(withSearch bool) *erFixture {
	f := &erFixture{
		dashboard: new(MockDashboard),
		prefs:     new(MockPreferences),
		regions:   new(MockRegions),
		search:    new(MockSearcher),
	}
	var searcher handlers.FacilitySearcher
	if withSearch {
		searcher = f.search
	}
	f.handler = handlers.NewERHandler(f.dashboard, f.prefs, f.regions, searcher)
	return f
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestERHandler_Dashboard_UsesSessionAndOrigin(t *testing.T) {
	f := newERFixture(false)
	prefs := entities.Preferences{Sido: "경북", Sort: entities.SortDistance}
	f.prefs.On("Get", mock.Anything, "s1").Return(prefs, nil)
	f.dashboard.On("Dashboard", mock.Anything, prefs, &entities.Location{Latitude: 36.0, Longitude: 129.3}).
		Return(&services.DashboardResult{RegionSummary: "경북 전체", Preferences: prefs}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/er", nil)
	req.Header.Set(handlers.SessionHeader, "s1")
	req.Header.Set("X-User-Lat", "36.0")
	req.Header.Set("X-User-Lng", "129.3")
	w := httptest.NewRecorder()

	f.handler.Dashboard(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", w.Header().Get(handlers.SessionHeader))
	assert.Equal(t, "경북 전체", decodeBody(t, w)["region_summary"])
	f.dashboard.AssertExpectations(t)
}

func TestERHandler_Dashboard_IssuesSessionAndDegradesPreferences(t *testing.T) {
	f := newERFixture(false)
	f.prefs.On("Get", mock.Anything, mock.AnythingOfType("string")).
		Return(entities.Preferences{}, errors.New("redis down"))
	var nilOrigin *entities.Location
	f.dashboard.On("Dashboard", mock.Anything, entities.Preferences{}, nilOrigin).
		Return(&services.DashboardResult{RegionSummary: "전체 지역"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/er?lat=999&lng=1", nil)
	w := httptest.NewRecorder()

	f.handler.Dashboard(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(handlers.SessionHeader))
	f.dashboard.AssertExpectations(t)
}

func TestERHandler_ApplyPreference(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		f := newERFixture(false)
		req := httptest.NewRequest(http.MethodPost, "/api/er/preferences", strings.NewReader("{"))
		w := httptest.NewRecorder()

		f.handler.ApplyPreference(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.prefs.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("validation error", func(t *testing.T) {
		f := newERFixture(false)
		action := entities.PreferenceAction{Action: "bogus"}
		f.prefs.On("Apply", mock.Anything, "s1", action).
			Return(entities.Preferences{}, apperrors.NewValidationError(`unknown action "bogus"`))

		req := httptest.NewRequest(http.MethodPost, "/api/er/preferences", strings.NewReader(`{"action":"bogus"}`))
		req.Header.Set(handlers.SessionHeader, "s1")
		w := httptest.NewRecorder()

		f.handler.ApplyPreference(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, `unknown action "bogus"`, decodeBody(t, w)["error"])
	})

	t.Run("applied", func(t *testing.T) {
		f := newERFixture(false)
		action := entities.PreferenceAction{Action: entities.ActionRegion, Sido: "경북", Sigungu: "포항시"}
		f.prefs.On("Apply", mock.Anything, "s1", action).
			Return(entities.Preferences{Sido: "경북", Sigungu: "포항시"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/er/preferences",
			strings.NewReader(`{"action":"region","sido":"경북","sigungu":"포항시"}`))
		req.Header.Set(handlers.SessionHeader, "s1")
		w := httptest.NewRecorder()

		f.handler.ApplyPreference(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "포항시", body["preferences"].(map[string]interface{})["sigungu"])
	})
}

func TestERHandler_Detail(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		f := newERFixture(false)
		req := httptest.NewRequest(http.MethodGet, "/api/er/abc", nil)
		req.SetPathValue("id", "abc")
		w := httptest.NewRecorder()

		f.handler.Detail(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		f := newERFixture(false)
		f.dashboard.On("Detail", mock.Anything, int64(9)).
			Return(nil, apperrors.NewNotFoundError("facility not found"))
		req := httptest.NewRequest(http.MethodGet, "/api/er/9", nil)
		req.SetPathValue("id", "9")
		w := httptest.NewRecorder()

		f.handler.Detail(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("found", func(t *testing.T) {
		f := newERFixture(false)
		f.dashboard.On("Detail", mock.Anything, int64(1)).
			Return(&entities.FacilityDetail{Facility: &entities.Facility{ID: 1, Name: "포항성모병원"}}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/er/1", nil)
		req.SetPathValue("id", "1")
		w := httptest.NewRecorder()

		f.handler.Detail(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		facility := decodeBody(t, w)["facility"].(map[string]interface{})
		assert.Equal(t, "포항성모병원", facility["name"])
	})

	t.Run("internal errors are masked", func(t *testing.T) {
		f := newERFixture(false)
		f.dashboard.On("Detail", mock.Anything, int64(2)).
			Return(nil, apperrors.NewInternalError("failed to load status", errors.New("pq: connection refused")))
		req := httptest.NewRequest(http.MethodGet, "/api/er/2", nil)
		req.SetPathValue("id", "2")
		w := httptest.NewRecorder()

		f.handler.Detail(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
	})
}

func TestERHandler_Regions(t *testing.T) {
	f := newERFixture(false)
	f.regions.On("RegionIndex", mock.Anything).Return(map[string][]string{
		"서울": {"강남구"},
		"경북": {"포항시"},
	}, nil)
	f.regions.On("Sigungu", mock.Anything, "경북").Return([]string{"포항시"}, nil)

	w := httptest.NewRecorder()
	f.handler.Regions(w, httptest.NewRequest(http.MethodGet, "/api/er/regions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["sido"], 2)
	assert.Contains(t, body["regions"], "경북")

	w = httptest.NewRecorder()
	f.handler.Sigungu(w, httptest.NewRequest(http.MethodGet, "/api/er/sigungu?sido=%EA%B2%BD%EB%B6%81", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"포항시"}, decodeBody(t, w)["sigungu"])
}

func TestERHandler_Search(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newERFixture(false)
		w := httptest.NewRecorder()
		f.handler.Search(w, httptest.NewRequest(http.MethodGet, "/api/er/search?q=x", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		f := newERFixture(true)
		w := httptest.NewRecorder()
		f.handler.Search(w, httptest.NewRequest(http.MethodGet, "/api/er/search?q=x&limit=-1", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("limit is capped", func(t *testing.T) {
		f := newERFixture(true)
		f.search.On("Search", mock.Anything, "성모", "", 100).
			Return([]*entities.Facility{{ID: 1, Name: "포항성모병원"}}, nil)

		w := httptest.NewRecorder()
		f.handler.Search(w, httptest.NewRequest(http.MethodGet, "/api/er/search?q=%EC%84%B1%EB%AA%A8&limit=500", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decodeBody(t, w)["count"])
		f.search.AssertExpectations(t)
	})
}
