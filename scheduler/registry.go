package scheduler

import (
	"context"

	"budvest_data_service/config"
	"budvest_data_service/services/collector"
)

// Job names of the default registry
const (
	JobRealtimeQuotes = "realtime_quotes"
	JobIndexQuotes    = "index_quotes"
	JobFundFlow       = "fund_flow"
	JobDailyKline     = "daily_kline"
	JobMargin         = "margin"
	JobStockNews      = "stock_news"
	JobPolicyNews     = "policy_news"
	JobEarnings       = "earnings"
)

func collect(c collector.Collector, p collector.Params) RunFunc {
	return func(ctx context.Context) (int, error) {
		return c.Collect(ctx, p)
	}
}

// DefaultJobs builds the service's job registry
func DefaultJobs(cfg config.JobsConfig, set collector.Set) []Job {
	return []Job{
		{
			Name:        JobRealtimeQuotes,
			Description: "Spot quotes of the default stocks",
			Cadence:     Interval(cfg.RealtimeInterval),
			Gated:       true,
			Run:         collect(set.StockRealtime, collector.Params{}),
		},
		{
			Name:        JobIndexQuotes,
			Description: "Spot quotes of the index list",
			Cadence:     Interval(cfg.IndexInterval),
			Gated:       true,
			Run:         collect(set.IndexRealtime, collector.Params{}),
		},
		{
			Name:        JobFundFlow,
			Description: "Capital flow of the default stocks",
			Cadence:     Interval(cfg.FundFlowInterval),
			Gated:       true,
			Run:         collect(set.FundFlow, collector.Params{}),
		},
		{
			Name:        JobDailyKline,
			Description: "Daily K-lines after the close",
			Cadence:     DailyAt(cfg.DailyKlineAt),
			Run:         collect(set.StockDaily, collector.Params{Days: cfg.DailyKlineDays}),
		},
		{
			Name:        JobMargin,
			Description: "Margin trading details after the close",
			Cadence:     DailyAt(cfg.MarginAt),
			Run:         collect(set.Margin, collector.Params{}),
		},
		{
			Name:        JobStockNews,
			Description: "News of the default stocks",
			Cadence:     Interval(cfg.StockNewsInterval),
			Run:         collect(set.StockNews, collector.Params{}),
		},
		{
			Name:        JobPolicyNews,
			Description: "CCTV policy transcript and financial news",
			Cadence:     Interval(cfg.PolicyNewsInterval),
			Run:         collect(set.PolicyNews, collector.Params{Days: cfg.PolicyNewsDays}),
		},
		{
			Name:        JobEarnings,
			Description: "Earnings forecasts and express reports",
			Cadence:     DailyAt(cfg.EarningsAt),
			Run:         collect(set.Earnings, collector.Params{}),
		},
	}
}
