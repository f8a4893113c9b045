package entity

import "github.com/google/uuid"

// Principal is the authenticated caller as supplied by the auth collaborator.
// Every lookup is confined to CompanyID.
type Principal struct {
	UserID       uuid.UUID  `json:"user_id"`
	CompanyID    uuid.UUID  `json:"company_id"`
	TechnicianID *uuid.UUID `json:"technician_id,omitempty"`
}
