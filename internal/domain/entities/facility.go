package entities

import "time"

// Facility represents an emergency room registered with the national ER
// information service. Rows are created by an external import and only read here.
type Facility struct {
	ID        int64     `json:"id" db:"id"`
	HPID      string    `json:"hpid" db:"hpid"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Sido      string    `json:"sido" db:"sido"`
	Sigungu   string    `json:"sigungu" db:"sigungu"`
	Location  *Location `json:"location,omitempty" db:"-"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// RegionPair is a (province, district) pair used to query the upstream API.
type RegionPair struct {
	Sido    string `json:"sido"`
	Sigungu string `json:"sigungu"`
}

// FacilityStatus couples a facility with its current status, which may be nil.
type FacilityStatus struct {
	Facility *Facility
	Status   *CurrentStatus
}
