package entities

import "time"

// BedCount is an (available, total) pair. Either side may be unknown.
type BedCount struct {
	Available *int `json:"available"`
	Total     *int `json:"total"`
}

// HasData reports whether either side carries a non-zero value.
func (b BedCount) HasData() bool {
	return (b.Total != nil && *b.Total != 0) || (b.Available != nil && *b.Available != 0)
}

// Rate is available/total, or 0 when total is unknown or not positive.
func (b BedCount) Rate() float64 {
	if b.Total == nil || *b.Total <= 0 {
		return 0
	}
	avail := 0
	if b.Available != nil {
		avail = *b.Available
	}
	return float64(avail) / float64(*b.Total)
}

// StagingReading is one raw snapshot row for a facility at an observation time,
// as delivered by the real-time bed API. Rows only live for one ingestion cycle.
type StagingReading struct {
	HPID       string    `json:"hpid" db:"hpid"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`

	General          BedCount `json:"general"`
	Child            BedCount `json:"child"`
	NegativePressure BedCount `json:"negative_pressure"`
	IsolationGeneral BedCount `json:"isolation_general"`
	IsolationCohort  BedCount `json:"isolation_cohort"`

	// DeliveryFlag keeps the raw value; upstream mixes counts and Y/N flags.
	DeliveryFlag  *string `json:"delivery_flag" db:"delivery_flag"`
	DeliveryTotal *int    `json:"delivery_total" db:"delivery_total"`

	CTFlag         *string `json:"ct_flag" db:"ct_flag"`
	MRIFlag        *string `json:"mri_flag" db:"mri_flag"`
	AngioFlag      *string `json:"angio_flag" db:"angio_flag"`
	VentilatorFlag *string `json:"ventilator_flag" db:"ventilator_flag"`
}

// ReadingKey identifies a staging row.
type ReadingKey struct {
	HPID       string
	ObservedAt int64
}

// Key returns the (facility, observation time) identity of the reading.
func (r *StagingReading) Key() ReadingKey {
	return ReadingKey{HPID: r.HPID, ObservedAt: r.ObservedAt.UnixNano()}
}

// CurrentStatus is the latest known bed and equipment snapshot of a facility.
// There is at most one per facility.
type CurrentStatus struct {
	FacilityID int64     `json:"facility_id" db:"facility_id"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`

	General          BedCount `json:"general"`
	Child            BedCount `json:"child"`
	Delivery         BedCount `json:"delivery"`
	NegativePressure BedCount `json:"negative_pressure"`
	IsolationGeneral BedCount `json:"isolation_general"`
	IsolationCohort  BedCount `json:"isolation_cohort"`

	HasCT           *bool `json:"has_ct" db:"has_ct"`
	HasMRI          *bool `json:"has_mri" db:"has_mri"`
	HasAngio        *bool `json:"has_angio" db:"has_angio"`
	HasVentilator   *bool `json:"has_ventilator" db:"has_ventilator"`
	HasDeliveryRoom *bool `json:"has_delivery_room" db:"has_delivery_room"`

	MergedAt time.Time `json:"merged_at" db:"merged_at"`
}

// DeliveryAvailable reports whether at least one delivery room is free.
func (s *CurrentStatus) DeliveryAvailable() bool {
	return s != nil && s.Delivery.Available != nil && *s.Delivery.Available >= 1
}

// HasAnyData reports whether any tracked category has usable numbers.
func (s *CurrentStatus) HasAnyData() bool {
	if s == nil {
		return false
	}
	for _, b := range []BedCount{s.General, s.Child, s.Delivery, s.NegativePressure, s.IsolationGeneral, s.IsolationCohort} {
		if b.HasData() {
			return true
		}
	}
	return false
}

// Satisfies reports whether the status positively confirms eq.
// Unknown flags never satisfy.
func (s *CurrentStatus) Satisfies(eq Equipment) bool {
	if s == nil {
		return false
	}
	switch eq {
	case EquipmentCT:
		return isTrue(s.HasCT)
	case EquipmentMRI:
		return isTrue(s.HasMRI)
	case EquipmentAngio:
		return isTrue(s.HasAngio)
	case EquipmentVentilator:
		return isTrue(s.HasVentilator)
	case EquipmentDelivery:
		return s.DeliveryAvailable()
	}
	return false
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// BasicInfo holds facility-level facts from the basic info endpoint.
// They are hints only and never override a live snapshot.
type BasicInfo struct {
	HPID          string `json:"hpid"`
	ObstetricFlag *bool  `json:"obstetric_flag"`
}
