package handler

import (
	"strings"

	"academy/internal/enrollment/models"
	"academy/pkg/validation"
)

// UpdateEnrollmentRequest is the allow-listed grading payload.
type UpdateEnrollmentRequest struct {
	State      *string  `json:"state" validate:"omitempty,oneof=active completed cancelled"`
	FinalScore *float64 `json:"final_score" validate:"omitempty,gte=0"`
}

func (r *UpdateEnrollmentRequest) Normalize() {
	if r == nil || r.State == nil {
		return
	}
	s := strings.ToLower(strings.TrimSpace(*r.State))
	r.State = &s
}

func (r *UpdateEnrollmentRequest) Validate() error {
	return validation.Validate(r)
}

func (r *UpdateEnrollmentRequest) ToUpdate() models.Update {
	var u models.Update
	if r.State != nil {
		s := models.State(*r.State)
		u.State = &s
	}
	u.FinalScore = r.FinalScore
	return u
}
