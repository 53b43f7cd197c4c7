package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/data"
	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/service"
)

func (a *app) withAnalyses(cmd *cobra.Command, fn func(ctx context.Context, svc *service.AnalysisService) error) error {
	return a.withDB(cmd, func(ctx context.Context, _ *config.AppConfig, db *sql.DB) error {
		svc, err := service.NewAnalysisService(service.AnalysisServiceOptions{
			Analyses: data.NewAnalysisRepo(db),
			Results:  data.NewEsgResultRepo(db),
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		return fn(ctx, svc)
	})
}

func (a *app) analysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "analysis",
		Aliases: []string{"analyses"},
		Short:   "Look up analysis records",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <analysis-id>",
			Short: "Show one analysis record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAnalyses(cmd, func(ctx context.Context, svc *service.AnalysisService) error {
					rec, err := svc.GetByID(ctx, args[0])
					if err != nil {
						return err
					}
					return a.renderAnalysis(rec)
				})
			},
		},
		&cobra.Command{
			Use:   "latest <organization-id>",
			Short: "Show the most recent analysis of an organization",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withAnalyses(cmd, func(ctx context.Context, svc *service.AnalysisService) error {
					rec, err := svc.Latest(ctx, args[0])
					if err != nil {
						return err
					}
					return a.renderAnalysis(rec)
				})
			},
		},
	)
	return cmd
}

func (a *app) renderAnalysis(rec *model.Analysis) error {
	return a.render(rec, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Organization", "Status", "Payment", "Shipping", "Discount", "Updated"})
		discount := "-"
		if rec.DiscountPercentage != nil {
			discount = fmt.Sprintf("%.2f%%", *rec.DiscountPercentage)
		}
		tw.AppendRow(table.Row{
			rec.ID,
			rec.OrganizationID,
			rec.Status,
			rec.PaymentStatus,
			rec.ShippingStatus,
			discount,
			formatTime(&rec.UpdatedAt),
		})
	})
}
