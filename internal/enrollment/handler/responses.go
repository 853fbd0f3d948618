package handler

import (
	"time"

	"academy/internal/enrollment/models"
)

type EnrollmentResponse struct {
	ID                 string       `json:"id"`
	PersonID           string       `json:"person_id"`
	OfferingID         string       `json:"offering_id"`
	State              models.State `json:"state"`
	FinalScore         *float64     `json:"final_score"`
	CredentialIssued   bool         `json:"credential_issued"`
	CredentialIssuedAt *time.Time   `json:"credential_issued_at,omitempty"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func toEnrollmentResponse(e *models.Enrollment) *EnrollmentResponse {
	return &EnrollmentResponse{
		ID:                 e.ID.String(),
		PersonID:           e.PersonID.String(),
		OfferingID:         e.OfferingID.String(),
		State:              e.State,
		FinalScore:         e.FinalScore,
		CredentialIssued:   e.CredentialIssued,
		CredentialIssuedAt: e.CredentialIssuedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}
