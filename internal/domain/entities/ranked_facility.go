package entities

// RankedFacility is one dashboard entry.
type RankedFacility struct {
	Facility   *Facility      `json:"facility"`
	Status     *CurrentStatus `json:"status"`
	Score      float64        `json:"score"`
	Congestion float64        `json:"congestion"`
	DistanceKm *float64       `json:"distance_km"`
}

// StatusUI is the precomputed display block for one bed category.
type StatusUI struct {
	Label      string `json:"label"`
	ColorClass string `json:"color_class"`
	Available  *int   `json:"available"`
	Total      *int   `json:"total"`
}

// FacilityDetail is the payload of the detail view.
type FacilityDetail struct {
	Facility *Facility           `json:"facility"`
	Status   *CurrentStatus      `json:"status"`
	StatusUI map[string]StatusUI `json:"status_ui"`
	Tags     []string            `json:"tags"`
	Message  *string             `json:"message"`
}
