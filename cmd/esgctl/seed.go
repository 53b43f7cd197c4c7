package main

import (
	"context"
	"database/sql"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/data"
	"github.com/target/esg-pipeline/internal/devseed"
)

func (a *app) seedCmd() *cobra.Command {
	var opts devseed.Options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a development organization with a PENDING analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDB(cmd, func(ctx context.Context, _ *config.AppConfig, db *sql.DB) error {
				res, err := devseed.Run(ctx, devseed.Repos{
					Organizations: data.NewOrganizationRepo(db),
					Analyses:      data.NewAnalysisRepo(db),
				}, opts, a.logger)
				if err != nil {
					return err
				}
				return a.render(res, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"Organization", "Name", "Analysis", "Status"})
					tw.AppendRow(table.Row{res.Organization.ID, res.Organization.Name, res.Analysis.ID, res.Analysis.Status})
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.OrganizationID, "organization-id", "", "reuse an existing organization")
	f.StringVar(&opts.Name, "name", "", "organization name")
	f.StringVar(&opts.Country, "country", "", "organization country code")
	f.StringVar(&opts.Industry, "industry", "", "organization industry")
	f.StringVar(&opts.Website, "website", "", "organization website")
	f.StringVar(&opts.Document, "document", "", "organization tax document")
	f.StringVar(&opts.Email, "email", "", "contact email for the report")
	f.Float64Var(&opts.DiscountPercentage, "discount", 0, "discount percentage stored on the analysis")
	return cmd
}
