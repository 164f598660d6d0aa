package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	apperrors "github.com/erboard/backend/pkg/errors"
)

const (
	preferenceKeyPrefix = "prefs:"
	preferenceTTL       = 30 * 24 * time.Hour
)

// PreferenceService stores the dashboard selection of each session
type PreferenceService struct {
	store providers.CacheProvider
}

// NewPreferenceService creates a new preference service
func NewPreferenceService(store providers.CacheProvider) *PreferenceService {
	return &PreferenceService{store: store}
}

// Get returns the stored preferences of a session. Unknown sessions get the defaults.
func (s *PreferenceService) Get(ctx context.Context, sessionID string) (entities.Preferences, error) {
	raw, err := s.store.Get(ctx, preferenceKeyPrefix+sessionID)
	if errors.Is(err, providers.ErrCacheMiss) {
		return entities.Preferences{}, nil
	}
	if err != nil {
		return entities.Preferences{}, apperrors.NewInternalError("failed to load preferences", err)
	}

	var prefs entities.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		// a corrupt entry is treated as no selection
		return entities.Preferences{}, nil
	}
	return prefs, nil
}

// Apply mutates the session preferences according to action and stores the result.
func (s *PreferenceService) Apply(ctx context.Context, sessionID string, action entities.PreferenceAction) (entities.Preferences, error) {
	if sessionID == "" {
		return entities.Preferences{}, apperrors.NewValidationError("session id is required")
	}

	prefs, err := s.Get(ctx, sessionID)
	if err != nil {
		return entities.Preferences{}, err
	}

	next, err := ApplyAction(prefs, action)
	if err != nil {
		return entities.Preferences{}, err
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return entities.Preferences{}, apperrors.NewInternalError("failed to encode preferences", err)
	}
	if err := s.store.Set(ctx, preferenceKeyPrefix+sessionID, raw, preferenceTTL); err != nil {
		return entities.Preferences{}, apperrors.NewInternalError("failed to store preferences", err)
	}
	return next, nil
}

// ApplyAction returns prefs updated by action:
// reset clears everything, sort clears the category and filters,
// region sets the province and district, filter clears the sort.
func ApplyAction(prefs entities.Preferences, action entities.PreferenceAction) (entities.Preferences, error) {
	switch action.Action {
	case entities.ActionReset:
		return entities.Preferences{}, nil

	case entities.ActionSort:
		switch action.Sort {
		case "", entities.SortScore, entities.SortDistance:
		default:
			return prefs, apperrors.NewValidationError(fmt.Sprintf("unknown sort %q", action.Sort))
		}
		prefs.Sort = action.Sort
		prefs.EmergencyType = entities.CategoryNone
		prefs.Filters = nil
		return prefs, nil

	case entities.ActionRegion:
		prefs.Sido = action.Sido
		prefs.Sigungu = action.Sigungu
		return prefs, nil

	case entities.ActionFilter:
		if !action.EmergencyType.Valid() {
			return prefs, apperrors.NewValidationError(fmt.Sprintf("unknown emergency type %q", action.EmergencyType))
		}
		prefs.EmergencyType = action.EmergencyType
		prefs.Filters = copyFilters(action.Filters)
		prefs.Sort = ""
		return prefs, nil
	}
	return prefs, apperrors.NewValidationError(fmt.Sprintf("unknown action %q", action.Action))
}

func copyFilters(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
