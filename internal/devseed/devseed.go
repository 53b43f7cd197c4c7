// Package devseed creates local development data: an organization with a
// PENDING analysis that a test payment or POST /esg-jobs can move forward.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultOrganizationName = "Acme Sustentável"
	DefaultCountry          = "BR"
	DefaultIndustry         = "manufacturing"
	DefaultWebsite          = "https://example.com"
)

// Repos bundles the repositories the seeder writes to.
type Repos struct {
	Organizations core.OrganizationRepository
	Analyses      core.AnalysisRepository
}

// Options describe the seeded organization. Setting OrganizationID reuses an
// existing organization and only adds a new analysis.
type Options struct {
	OrganizationID string
	Name           string
	Country        string
	Industry       string
	Website        string
	Document       string
	Email          string
	// DiscountPercentage, when positive, is stored on the analysis.
	DiscountPercentage float64
}

// Result is what was created.
type Result struct {
	Organization *model.Organization `json:"organization" yaml:"organization"`
	Analysis     *model.Analysis     `json:"analysis"     yaml:"analysis"`
}

// Run seeds one organization (unless reused) and one PENDING analysis.
func Run(ctx context.Context, repos Repos, opts Options, logger *slog.Logger) (*Result, error) {
	if repos.Organizations == nil || repos.Analyses == nil {
		return nil, errors.New("organization and analysis repositories are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devseed")

	org, err := resolveOrganization(ctx, repos.Organizations, opts)
	if err != nil {
		return nil, err
	}

	req := &model.CreateAnalysisRequest{OrganizationID: org.ID}
	if opts.DiscountPercentage > 0 {
		pct := opts.DiscountPercentage
		req.DiscountPercentage = &pct
	}
	analysis, err := repos.Analyses.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	logger.InfoContext(ctx, "seeded analysis",
		"organization_id", org.ID,
		"analysis_id", analysis.ID,
		"status", analysis.Status,
	)
	return &Result{Organization: org, Analysis: analysis}, nil
}

func resolveOrganization(ctx context.Context, repo core.OrganizationRepository, opts Options) (*model.Organization, error) {
	if id := strings.TrimSpace(opts.OrganizationID); id != "" {
		org, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get organization %s: %w", id, err)
		}
		return org, nil
	}

	req := &model.CreateOrganizationRequest{
		Name:     fallback(opts.Name, DefaultOrganizationName),
		Country:  fallback(opts.Country, DefaultCountry),
		Industry: fallback(opts.Industry, DefaultIndustry),
		Website:  fallback(opts.Website, DefaultWebsite),
		Document: strings.TrimSpace(opts.Document),
	}
	if email := strings.TrimSpace(opts.Email); email != "" {
		req.Email = &email
	}
	org, err := repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

func fallback(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
