package services

import (
	"math"
	"sort"
	"strings"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/pkg/utils"
)

const (
	earthRadiusKm  = 6371.0
	searchRadiusKm = 30.0
)

// congestion weights
const (
	weightGeneral          = 0.45
	weightChild            = 0.20
	weightNegativePressure = 0.20
	weightIsolationGeneral = 0.10
	weightDelivery         = 0.05
)

type scoreWeights struct {
	distance   float64
	congestion float64
	bonus      float64
}

var categoryWeights = map[entities.EmergencyCategory]scoreWeights{
	entities.CategoryNone:       {distance: 0.6, congestion: 0.4},
	entities.CategoryStroke:     {distance: 0.6, congestion: 0.3, bonus: 0.1},
	entities.CategoryTraffic:    {distance: 0.6, congestion: 0.3, bonus: 0.1},
	entities.CategoryCardio:     {distance: 0.8, congestion: 0.2},
	entities.CategoryObstetrics: {distance: 0.4, congestion: 0.3, bonus: 0.3},
}

// RankingService scores and orders facilities for the dashboard. It holds no
// state and performs no I/O, so one instance can serve concurrent requests.
type RankingService struct{}

// NewRankingService creates a new ranking service
func NewRankingService() *RankingService {
	return &RankingService{}
}

// Rank filters, scores and orders facilities according to prefs.
// origin is the caller position and may be nil.
func (s *RankingService) Rank(facilities []entities.FacilityStatus, prefs entities.Preferences, origin *entities.Location) []*entities.RankedFacility {
	if prefs.RegionSelected() {
		return s.rankByRegion(facilities, prefs)
	}

	required := prefs.RequiredEquipment()
	out := make([]*entities.RankedFacility, 0, len(facilities))

	for _, fs := range facilities {
		if fs.Facility == nil {
			continue
		}
		if len(required) > 0 && !SatisfiesAny(fs.Status, required) {
			continue
		}
		if !fs.Status.HasAnyData() {
			continue
		}

		distance := DistanceKm(origin, fs.Facility.Location)
		if distance != nil && *distance > searchRadiusKm {
			continue
		}

		congestion := CongestionScore(fs.Status)
		out = append(out, &entities.RankedFacility{
			Facility:   fs.Facility,
			Status:     fs.Status,
			Congestion: congestion,
			DistanceKm: distance,
			Score:      CompositeScore(prefs.EmergencyType, DistanceScore(distance), congestion, fs.Status),
		})
	}

	if prefs.EffectiveSort() == entities.SortDistance {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DistanceKm, out[j].DistanceKm
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			}
			return *a < *b
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	}
	return out
}

// rankByRegion keeps the facilities of the selected region and orders them by
// name without scoring.
func (s *RankingService) rankByRegion(facilities []entities.FacilityStatus, prefs entities.Preferences) []*entities.RankedFacility {
	out := make([]*entities.RankedFacility, 0)

	for _, fs := range facilities {
		if fs.Facility == nil {
			continue
		}
		if !utils.MatchesSido(fs.Facility.Sido, prefs.Sido) {
			continue
		}
		if prefs.SigunguSelected() && fs.Facility.Sigungu != prefs.Sigungu {
			continue
		}
		if !fs.Status.HasAnyData() {
			continue
		}
		out = append(out, &entities.RankedFacility{
			Facility:   fs.Facility,
			Status:     fs.Status,
			Congestion: CongestionScore(fs.Status),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.Compare(out[i].Facility.Name, out[j].Facility.Name) < 0
	})
	return out
}

// SatisfiesAny reports whether status confirms at least one required tag.
func SatisfiesAny(status *entities.CurrentStatus, required entities.EquipmentSet) bool {
	for eq := range required {
		if status.Satisfies(eq) {
			return true
		}
	}
	return false
}

// CongestionScore is the weighted availability of the tracked categories, in [0, 1].
func CongestionScore(status *entities.CurrentStatus) float64 {
	if status == nil {
		return 0
	}
	delivery := 0.0
	if status.DeliveryAvailable() {
		delivery = 1.0
	}
	return status.General.Rate()*weightGeneral +
		status.Child.Rate()*weightChild +
		status.NegativePressure.Rate()*weightNegativePressure +
		status.IsolationGeneral.Rate()*weightIsolationGeneral +
		delivery*weightDelivery
}

// DistanceKm is the great-circle distance between a and b, or nil when
// either side has no coordinates.
func DistanceKm(a, b *entities.Location) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	return &d
}

// Haversine returns the distance in kilometres between two coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := rlat2 - rlat1
	dlng := (lng2 - lng1) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// DistanceScore falls linearly from 1 at 0 km to 0 at 30 km. Unknown distance scores 0.
func DistanceScore(distanceKm *float64) float64 {
	if distanceKm == nil {
		return 0
	}
	return math.Max(0, 1-*distanceKm/searchRadiusKm)
}

// CompositeScore blends distance and congestion with the weights of category.
func CompositeScore(category entities.EmergencyCategory, distanceScore, congestion float64, status *entities.CurrentStatus) float64 {
	w, ok := categoryWeights[category]
	if !ok {
		w = categoryWeights[entities.CategoryNone]
	}

	bonus := 0.0
	switch category {
	case entities.CategoryStroke, entities.CategoryTraffic:
		if status.Satisfies(entities.EquipmentCT) || status.Satisfies(entities.EquipmentMRI) {
			bonus = 1.0
		}
	case entities.CategoryObstetrics:
		if status.DeliveryAvailable() {
			bonus = 1.0
		}
	}

	return w.distance*distanceScore + w.congestion*congestion + w.bonus*bonus
}
