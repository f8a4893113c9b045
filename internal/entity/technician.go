package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/geo"
)

// TechnicianStatus is a free label: any value may follow any other.
type TechnicianStatus string

const (
	TechAvailable TechnicianStatus = "AVAILABLE"
	TechOnJob     TechnicianStatus = "ON_JOB"
	TechOnBreak   TechnicianStatus = "ON_BREAK"
	TechOffDuty   TechnicianStatus = "OFF_DUTY"
)

func (s TechnicianStatus) Valid() bool {
	switch s {
	case TechAvailable, TechOnJob, TechOnBreak, TechOffDuty:
		return true
	}
	return false
}

// ParseTechnicianStatus accepts any letter case.
func ParseTechnicianStatus(s string) (TechnicianStatus, bool) {
	st := TechnicianStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

type Technician struct {
	ID         uuid.UUID        `json:"id"`
	CompanyID  uuid.UUID        `json:"company_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Name       string           `json:"name"`
	Status     TechnicianStatus `json:"status"`
	TradeTypes []string         `json:"trade_types"`
	Active     bool             `json:"active"`

	CurrentLocation    *geo.LatLng `json:"current_location,omitempty"`
	LastLocationUpdate *time.Time  `json:"last_location_update,omitempty"`
}

// Position is a timestamped technician location.
type Position struct {
	Location geo.LatLng `json:"location"`
	At       time.Time  `json:"at"`
}

// LastPosition returns the location stored on the technician record.
func (t Technician) LastPosition() (Position, bool) {
	if t.CurrentLocation == nil || t.LastLocationUpdate == nil {
		return Position{}, false
	}
	return Position{Location: *t.CurrentLocation, At: *t.LastLocationUpdate}, true
}
