package model

import (
	"bytes"
	"encoding/json"
)

// AnalysisRequest is the body sent to the external analysis service.
type AnalysisRequest struct {
	OrganizationName string `json:"organization_name"`
	Country          string `json:"country"`
	Website          string `json:"website"`
	Industry         string `json:"industry"`
	Document         string `json:"document"`
}

// AnalysisRequestFor builds the service request for an organization.
func AnalysisRequestFor(o OrganizationDescriptor) AnalysisRequest {
	return AnalysisRequest{
		OrganizationName: o.Name,
		Country:          o.Country,
		Website:          o.Website,
		Industry:         o.Industry,
		Document:         o.Document,
	}
}

// AnalysisResponse is the analysis service reply.
type AnalysisResponse struct {
	Status         string          `json:"status"`
	AnalysisJSON   json.RawMessage `json:"analysis_json,omitempty"`
	PartialResults json.RawMessage `json:"partial_results,omitempty"`
	PdfBase64      string          `json:"pdf_base64,omitempty"`
	Filename       string          `json:"filename,omitempty"`
	FailedPrompts  []string        `json:"failed_prompts,omitempty"`
}

// Document returns analysis_json, falling back to partial_results. A
// missing or null document yields an empty object.
func (r *AnalysisResponse) Document() json.RawMessage {
	for _, doc := range []json.RawMessage{r.AnalysisJSON, r.PartialResults} {
		trimmed := bytes.TrimSpace(doc)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			return trimmed
		}
	}
	return json.RawMessage(`{}`)
}

// HasArtifact reports whether the response carries a rendered report.
func (r *AnalysisResponse) HasArtifact() bool {
	return r.PdfBase64 != ""
}

// PaymentConfirmation is the content of the payment confirmation email.
type PaymentConfirmation struct {
	To               string
	OrganizationName string
	Amount           *float64
	PlanName         string
}

// GatewayHealth reports the payment gateway configuration and reachability.
type GatewayHealth struct {
	AccessTokenConfigured   bool   `json:"accessTokenConfigured"`
	AccessTokenLength       int    `json:"accessTokenLength"`
	WebhookSecretConfigured bool   `json:"webhookSecretConfigured"`
	WebhookSecretLength     int    `json:"webhookSecretLength"`
	APIReachable            bool   `json:"apiReachable"`
	APIStatus               int    `json:"apiStatus,omitempty"`
	Error                   string `json:"error,omitempty"`
}
