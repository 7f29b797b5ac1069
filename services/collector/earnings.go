package collector

import (
	"context"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// Report types of the earnings calendar
const (
	ReportForecast = "业绩预告"
	ReportExpress  = "业绩快报"
)

// Earnings collects earnings forecasts and express reports of one fiscal
// period. Announcements are stored once.
type Earnings struct {
	base
	forecast provider.FetchFunc
	express  provider.FetchFunc
}

func NewEarnings(forecast, express provider.FetchFunc, deps Deps) *Earnings {
	return &Earnings{base: newBase("earnings", deps), forecast: forecast, express: express}
}

// ReportDate resolves the fiscal period of a run
func (c *Earnings) ReportDate(p Params) string {
	if p.ReportDate != "" {
		return p.ReportDate
	}
	return FiscalQuarterEnd(c.now())
}

func (c *Earnings) Collect(ctx context.Context, p Params) (int, error) {
	period := c.ReportDate(p)
	req := []provider.Request{{Date: period}}

	var records []models.Record
	for _, src := range []struct {
		reportType string
		fetch      provider.FetchFunc
	}{
		{ReportForecast, c.forecast},
		{ReportExpress, c.express},
	} {
		for _, u := range c.fetchAll(ctx, src.fetch, req) {
			for _, row := range u.rows {
				records = append(records, &models.EarningsCalendar{
					Symbol:     normalize.String(row, "股票代码"),
					Name:       normalize.String(row, "股票简称"),
					ReportDate: period,
					ActualDate: normalize.Date(row, "公告日期"),
					ReportType: src.reportType,
				})
			}
		}
	}
	return c.persist(ctx, records, store.AppendOnce)
}
