package entities

import "time"

// Message is the latest advisory an emergency room has published, such as a
// notice that a department cannot take patients.
type Message struct {
	FacilityID  int64     `json:"facility_id" db:"facility_id"`
	HPID        string    `json:"hpid" db:"hpid"`
	Text        string    `json:"message" db:"message"`
	MessageType string    `json:"message_type,omitempty" db:"message_type"`
	MessageTime time.Time `json:"message_time" db:"message_time"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
