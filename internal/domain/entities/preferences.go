package entities

import "github.com/erboard/backend/pkg/utils"

// SortMode selects the dashboard ordering.
type SortMode string

const (
	SortScore    SortMode = "score"
	SortDistance SortMode = "distance"
)

// Preferences is the per-user dashboard selection. It is passed into the
// ranking engine as a value; the engine never reads session state itself.
type Preferences struct {
	Sort          SortMode          `json:"sort,omitempty"`
	Sido          string            `json:"sido,omitempty"`
	Sigungu       string            `json:"sigungu,omitempty"`
	EmergencyType EmergencyCategory `json:"etype,omitempty"`
	Filters       map[string]string `json:"filters,omitempty"`
}

// EffectiveSort returns the sort mode, defaulting to score.
func (p Preferences) EffectiveSort() SortMode {
	if p.Sort == "" {
		return SortScore
	}
	return p.Sort
}

// RegionSelected reports whether a province is chosen.
func (p Preferences) RegionSelected() bool {
	return utils.IsRegionSelected(p.Sido)
}

// SigunguSelected reports whether a district is chosen as well.
func (p Preferences) SigunguSelected() bool {
	return p.RegionSelected() && utils.IsRegionSelected(p.Sigungu)
}

// RequiredEquipment unions the category mapping with explicitly checked tags
// (filters whose value is "1").
func (p Preferences) RequiredEquipment() EquipmentSet {
	set := EquipmentSet{}
	set.Add(p.EmergencyType.Equipment()...)
	for _, eq := range AllEquipment {
		if p.Filters[string(eq)] == "1" {
			set.Add(eq)
		}
	}
	return set
}

// RegionSummary is the heading shown above the dashboard.
func (p Preferences) RegionSummary() string {
	switch {
	case !p.RegionSelected():
		return "전체 지역"
	case !p.SigunguSelected():
		return p.Sido + " 전체"
	default:
		return p.Sido + " " + p.Sigungu
	}
}

// PreferenceAction is the body of the action-dispatch endpoint.
type PreferenceAction struct {
	Action        string            `json:"action"`
	Sort          SortMode          `json:"sort,omitempty"`
	Sido          string            `json:"sido,omitempty"`
	Sigungu       string            `json:"sigungu,omitempty"`
	EmergencyType EmergencyCategory `json:"etype,omitempty"`
	Filters       map[string]string `json:"filters,omitempty"`
}

const (
	ActionSort   = "sort"
	ActionRegion = "region"
	ActionFilter = "filter"
	ActionReset  = "reset"
)
