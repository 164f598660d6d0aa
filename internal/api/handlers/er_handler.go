package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/infrastructure/observability"
	apperrors "github.com/erboard/backend/pkg/errors"
)

// SessionHeader carries the caller's preference session id.
const SessionHeader = "X-Session-ID"

const (
	latHeader          = "X-User-Lat"
	lngHeader          = "X-User-Lng"
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// DashboardReader serves ranked listings and facility detail
type DashboardReader interface {
	Dashboard(ctx context.Context, prefs entities.Preferences, origin *entities.Location) (*services.DashboardResult, error)
	Detail(ctx context.Context, facilityID int64) (*entities.FacilityDetail, error)
}

// PreferenceStore loads and mutates session preferences
type PreferenceStore interface {
	Get(ctx context.Context, sessionID string) (entities.Preferences, error)
	Apply(ctx context.Context, sessionID string, action entities.PreferenceAction) (entities.Preferences, error)
}

// RegionLister builds the region selectors
type RegionLister interface {
	RegionIndex(ctx context.Context) (map[string][]string, error)
	Sigungu(ctx context.Context, sido string) ([]string, error)
}

// FacilitySearcher runs full text facility search
type FacilitySearcher interface {
	Search(ctx context.Context, query, sido string, limit int) ([]*entities.Facility, error)
}

// ERHandler handles the emergency room dashboard endpoints
type ERHandler struct {
	dashboard DashboardReader
	prefs     PreferenceStore
	regions   RegionLister
	search    FacilitySearcher
}

// NewERHandler creates a new ER handler. search may be nil when no index is configured.
func NewERHandler(dashboard DashboardReader, prefs PreferenceStore, regions RegionLister, search FacilitySearcher) *ERHandler {
	return &ERHandler{
		dashboard: dashboard,
		prefs:     prefs,
		regions:   regions,
		search:    search,
	}
}

// sessionID returns the caller's session id, issuing a new one when absent.
// The id is always echoed back in the response header.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	return id
}

// originFromRequest reads the caller position from the query or the
// location headers. Anything missing or out of range yields nil.
func originFromRequest(r *http.Request) *entities.Location {
	q := r.URL.Query()
	latRaw, lngRaw := q.Get("lat"), q.Get("lng")
	if latRaw == "" || lngRaw == "" {
		latRaw, lngRaw = r.Header.Get(latHeader), r.Header.Get(lngHeader)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil
	}
	return &entities.Location{Latitude: lat, Longitude: lng}
}

// Dashboard handles GET /api/er
func (h *ERHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefs, err := h.prefs.Get(ctx, sessionID(w, r))
	if err != nil {
		// a broken preference store degrades to the default view
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to load preferences")
		prefs = entities.Preferences{}
	}

	result, err := h.dashboard.Dashboard(ctx, prefs, originFromRequest(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetPreferences handles GET /api/er/preferences
func (h *ERHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.Get(r.Context(), sessionID(w, r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, prefs)
}

// ApplyPreference handles POST /api/er/preferences
func (h *ERHandler) ApplyPreference(w http.ResponseWriter, r *http.Request) {
	session := sessionID(w, r)

	var action entities.PreferenceAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prefs, err := h.prefs.Apply(r.Context(), session, action)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"preferences": prefs,
	})
}

// Regions handles GET /api/er/regions
func (h *ERHandler) Regions(w http.ResponseWriter, r *http.Request) {
	index, err := h.regions.RegionIndex(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"sido":    services.SidoList(index),
		"regions": index,
	})
}

// Sigungu handles GET /api/er/sigungu?sido=
func (h *ERHandler) Sigungu(w http.ResponseWriter, r *http.Request) {
	list, err := h.regions.Sigungu(r.Context(), r.URL.Query().Get("sido"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"sigungu": list,
	})
}

// Detail handles GET /api/er/{id}
func (h *ERHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	detail, err := h.dashboard.Detail(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

// Search handles GET /api/er/search?q=&sido=&limit=
func (h *ERHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		respondWithError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	q := r.URL.Query()
	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithAppError(w, apperrors.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxSearchLimit)
	}

	facilities, err := h.search.Search(r.Context(), q.Get("q"), q.Get("sido"), limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": facilities,
		"count":      len(facilities),
	})
}
