package models

import (
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	RoleConsultant = `consultant`
	RoleClinic     = `clinic`
)

// Claims are the identity bits the transport layer decodes from a bearer
// token. Role resolution itself happens upstream.
type Claims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID  `json:"userID"`
	Role     string     `json:"role"`
	ClinicID *uuid.UUID `json:"clinicID,omitempty"`
}
