package handler

import (
	"time"

	"academy/internal/credential/eligibility"
	"academy/internal/credential/models"
	enrollment "academy/internal/enrollment/models"
)

type IssueResponse struct {
	CredentialID    string    `json:"credential_id"`
	EnrollmentID    string    `json:"enrollment_id"`
	IssuedAt        time.Time `json:"issued_at"`
	VerificationURL string    `json:"verification_url"`
	Created         bool      `json:"created"`
}

func toIssueResponse(r *models.IssueResult) *IssueResponse {
	return &IssueResponse{
		CredentialID:    r.Credential.ID.String(),
		EnrollmentID:    r.Credential.EnrollmentID.String(),
		IssuedAt:        r.Credential.IssuedAt,
		VerificationURL: r.VerificationURL,
		Created:         r.Created,
	}
}

type CredentialResponse struct {
	ID              string     `json:"id"`
	EnrollmentID    string     `json:"enrollment_id"`
	OfferingID      string     `json:"offering_id"`
	IssuedAt        time.Time  `json:"issued_at"`
	SequenceNo      *int64     `json:"sequence_no,omitempty"`
	Attested        bool       `json:"attested"`
	Revoked         bool       `json:"revoked"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	VerificationURL string     `json:"verification_url"`
}

func toCredentialResponse(c *models.Credential, verificationURL string) *CredentialResponse {
	return &CredentialResponse{
		ID:              c.ID.String(),
		EnrollmentID:    c.EnrollmentID.String(),
		OfferingID:      c.OfferingID.String(),
		IssuedAt:        c.IssuedAt,
		SequenceNo:      c.SequenceNo,
		Attested:        c.Attested,
		Revoked:         c.Revoked,
		RevokedAt:       c.RevokedAt,
		VerificationURL: verificationURL,
	}
}

type MyCredentialsResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

type OfferingRowResponse struct {
	EnrollmentID string              `json:"enrollment_id"`
	PersonID     string              `json:"person_id"`
	PersonName   string              `json:"person_name"`
	State        enrollment.State    `json:"state"`
	FinalScore   *float64            `json:"final_score"`
	Bucket       eligibility.Bucket  `json:"bucket"`
	Credential   *CredentialResponse `json:"credential,omitempty"`
}

type OfferingListingResponse struct {
	Rows   []OfferingRowResponse `json:"rows"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func toOfferingListing(page *models.OfferingPage, f models.OfferingFilter, verificationURL func(*models.Credential) string) *OfferingListingResponse {
	resp := &OfferingListingResponse{
		Rows:   make([]OfferingRowResponse, 0, len(page.Rows)),
		Total:  page.Total,
		Limit:  f.Limit,
		Offset: f.Offset,
	}
	for _, row := range page.Rows {
		out := OfferingRowResponse{
			EnrollmentID: row.Enrollment.ID.String(),
			PersonID:     row.Enrollment.PersonID.String(),
			PersonName:   row.Enrollment.PersonName,
			State:        row.Enrollment.State,
			FinalScore:   row.Enrollment.FinalScore,
			Bucket:       row.Bucket,
		}
		if row.Credential != nil {
			out.Credential = toCredentialResponse(row.Credential, verificationURL(row.Credential))
		}
		resp.Rows = append(resp.Rows, out)
	}
	return resp
}
