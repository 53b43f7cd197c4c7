package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Organization is the subject of an ESG analysis.
type Organization struct {
	ID         string    `json:"id"                   yaml:"id"                   db:"id"`
	Name       string    `json:"name"                 yaml:"name"                 db:"name"`
	Country    string    `json:"country"              yaml:"country"              db:"country"`
	Website    string    `json:"website"              yaml:"website"              db:"website"`
	Industry   string    `json:"industry"             yaml:"industry"             db:"industry"`
	Document   string    `json:"document"             yaml:"document"             db:"document"`
	Email      *string   `json:"email,omitempty"      yaml:"email,omitempty"      db:"email"`
	OwnerEmail *string   `json:"ownerEmail,omitempty" yaml:"ownerEmail,omitempty" db:"owner_email"`
	CreatedAt  time.Time `json:"createdAt"            yaml:"createdAt"            db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"            yaml:"updatedAt"            db:"updated_at"`
}

// ContactEmail returns the organization email, falling back to the owner email.
func (o *Organization) ContactEmail() string {
	if o.Email != nil && strings.TrimSpace(*o.Email) != "" {
		return strings.TrimSpace(*o.Email)
	}
	if o.OwnerEmail != nil {
		return strings.TrimSpace(*o.OwnerEmail)
	}
	return ""
}

// Descriptor returns the subset of fields sent to the analysis service.
func (o *Organization) Descriptor() OrganizationDescriptor {
	return OrganizationDescriptor{
		ID:       o.ID,
		Name:     o.Name,
		Country:  o.Country,
		Website:  o.Website,
		Industry: o.Industry,
		Document: o.Document,
	}
}

// CreateOrganizationRequest creates an organization.
type CreateOrganizationRequest struct {
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	Website    string  `json:"website"`
	Industry   string  `json:"industry"`
	Document   string  `json:"document"`
	Email      *string `json:"email,omitempty"`
	OwnerEmail *string `json:"ownerEmail,omitempty"`
}

// Validate validates the request.
func (r *CreateOrganizationRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// OrganizationDescriptor identifies the organization in a job payload.
type OrganizationDescriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Website  string `json:"website"`
	Industry string `json:"industry"`
	Document string `json:"document"`
}

// EsgJobPayload is the payload of an esg_analysis job. AnalysisID pins the
// record the worker finalizes.
type EsgJobPayload struct {
	Organization OrganizationDescriptor `json:"organization"`
	AnalysisID   string                 `json:"analysis_id"`
}

// Validate validates the payload.
func (p *EsgJobPayload) Validate() error {
	if p.AnalysisID == "" {
		return errors.New("analysis_id is required")
	}
	if p.Organization.ID == "" {
		return errors.New("organization.id is required")
	}
	return nil
}

// DecodeEsgJobPayload decodes and validates a job payload.
func DecodeEsgJobPayload(raw json.RawMessage) (EsgJobPayload, error) {
	var p EsgJobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, p.Validate()
}
