package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fabgroup/recon-cli/internal/ledger"
	"github.com/fabgroup/recon-cli/internal/normalize"
	"github.com/fabgroup/recon-cli/internal/recon"
	"github.com/fabgroup/recon-cli/internal/workbook"
	"github.com/fabgroup/recon-cli/pkg/itsperfect"
	"github.com/fabgroup/recon-cli/pkg/shopify"
)

type pipelineFlags struct {
	from     string
	to       string
	baseline string
}

func addPipelineFlags(cmd *cobra.Command, fl *pipelineFlags) {
	cmd.Flags().StringVar(&fl.from, "from", "", "period start, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fl.to, "to", "", "period end, exclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fl.baseline, "baseline", "", "prior-period reconciliation workbook")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("baseline")
}

// buildSources runs the data side of the pipeline: baseline workbook, both
// ERP record sets, all three analytics reports, normalization and the
// baseline merge. Any unrecovered fetch failure aborts; there are no partial
// results.
func buildSources(ctx context.Context, fl pipelineFlags) (recon.Sources, error) {
	base, err := workbook.ReadBaseline(fl.baseline)
	if err != nil {
		return recon.Sources{}, err
	}

	itsp := itsperfect.NewClient(cfg.ITSP.BaseURL, cfg.ITSP.Username, cfg.ITSP.Password,
		itsperfect.WithPageSize(cfg.ITSP.PageSize),
		itsperfect.WithRateLimitPolicy(cfg.ITSP.MaxRateLimitRetries, time.Duration(cfg.ITSP.RateLimitDelaySecs)*time.Second),
		itsperfect.WithLimiter(rate.NewLimiter(rate.Limit(cfg.ITSP.RequestsPerSecond), cfg.ITSP.RequestsPerSecond)),
	)

	rawOrders, err := itsp.FetchSalesOrders(ctx, fl.from, fl.to)
	if err != nil {
		return recon.Sources{}, eris.Wrap(err, "fetch sales orders")
	}
	rawReturns, err := itsp.FetchReturns(ctx, fl.from, fl.to)
	if err != nil {
		return recon.Sources{}, eris.Wrap(err, "fetch returns")
	}
	zap.L().Info("erp records fetched",
		zap.Int("orders", len(rawOrders)),
		zap.Int("returns", len(rawReturns)),
	)

	reports, err := shopify.FetchReports(ctx,
		newShopifyClient(cfg.Shopify.Live.AccessToken, cfg.Shopify.Live.GraphQLURL),
		newShopifyClient(cfg.Shopify.Archive.AccessToken, cfg.Shopify.Archive.GraphQLURL),
		fl.from, fl.to)
	if err != nil {
		return recon.Sources{}, err
	}
	zap.L().Info("analytics reports fetched",
		zap.Int("payments", len(reports.Payments.Rows)),
		zap.Int("sales", len(reports.InclReturns.Rows)),
		zap.Int("tax", len(reports.Tax.Rows)),
	)

	orders := normalize.Orders(rawOrders, cfg.Recon.Subsidiary, cfg.Recon.Channel)
	returns := normalize.Returns(rawReturns, cfg.Recon.Subsidiary)

	merged, err := ledger.MergeBaseline(base.Orders, normalize.WithVATPercent(orders), normalize.ColReference)
	if err != nil {
		return recon.Sources{}, eris.Wrap(err, "merge baseline")
	}

	return recon.Sources{
		Orders:   orders,
		Returns:  returns,
		Sales:    toLedger(reports.InclReturns),
		Tax:      toLedger(reports.Tax),
		Payments: toLedger(reports.Payments),
		Baseline: merged,
		Backend:  base.Backend,
	}, nil
}

func newShopifyClient(accessToken, graphqlURL string) shopify.Client {
	return shopify.NewClient(accessToken, graphqlURL,
		shopify.WithBatchSize(cfg.Shopify.BatchSize),
		shopify.WithRetryPolicy(cfg.Shopify.MaxRetries, time.Duration(cfg.Shopify.InitialDelaySecs)*time.Second),
	)
}

func toLedger(t shopify.Table) ledger.Table {
	return ledger.Table{Columns: t.Columns, Rows: t.Rows}
}

// periodYearMonth scopes the report's gift card criteria to the period start.
func periodYearMonth(from string) (int, int, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "parse period start %q", from)
	}
	return start.Year(), int(start.Month()), nil
}
