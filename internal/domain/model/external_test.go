package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisResponse_Document(t *testing.T) {
	tests := []struct {
		name string
		resp AnalysisResponse
		want string
	}{
		{
			name: "analysis json wins",
			resp: AnalysisResponse{AnalysisJSON: json.RawMessage(`{"a":1}`), PartialResults: json.RawMessage(`{"p":1}`)},
			want: `{"a":1}`,
		},
		{
			name: "partial results fallback",
			resp: AnalysisResponse{AnalysisJSON: json.RawMessage(`null`), PartialResults: json.RawMessage(`{"p":1}`)},
			want: `{"p":1}`,
		},
		{
			name: "neither",
			resp: AnalysisResponse{},
			want: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(tt.resp.Document()))
		})
	}
}

func TestOrganization_ContactEmail(t *testing.T) {
	blank := "  "
	owner := "owner@example.com"
	org := "org@example.com"

	assert.Equal(t, org, (&Organization{Email: &org, OwnerEmail: &owner}).ContactEmail())
	assert.Equal(t, owner, (&Organization{Email: &blank, OwnerEmail: &owner}).ContactEmail())
	assert.Empty(t, (&Organization{}).ContactEmail())
}

func TestAnalysisRequestFor(t *testing.T) {
	req := AnalysisRequestFor(OrganizationDescriptor{ID: "o1", Name: "Acme", Country: "AR", Industry: "energy"})
	b, err := json.Marshal(req)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"organization_name":"Acme","country":"AR","website":"","industry":"energy","document":""}`, string(b))
}
