package collector

import (
	"context"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// StockDaily collects forward-adjusted daily K-lines over a trailing window
type StockDaily struct {
	base
	fetch provider.FetchFunc
}

func NewStockDaily(fetch provider.FetchFunc, deps Deps) *StockDaily {
	return &StockDaily{base: newBase("stock_daily", deps), fetch: fetch}
}

// window resolves the YYYYMMDD date range of a run
func (c *StockDaily) window(p Params) (string, string) {
	now := c.now()
	end := p.EndDate
	if end == "" {
		end = now.Format("20060102")
	}
	start := p.StartDate
	if start == "" {
		days := p.Days
		if days <= 0 {
			days = defaultKlineDays
		}
		start = now.AddDate(0, 0, -days).Format("20060102")
	}
	return start, end
}

func (c *StockDaily) Collect(ctx context.Context, p Params) (int, error) {
	start, end := c.window(p)
	symbols := c.stocks(p)
	reqs := make([]provider.Request, 0, len(symbols))
	for _, s := range symbols {
		reqs = append(reqs, provider.Request{Symbol: s, StartDate: start, EndDate: end})
	}

	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.fetch, reqs) {
		for _, row := range u.rows {
			records = append(records, &models.StockDaily{
				Symbol:       u.req.Symbol,
				TradeDate:    normalize.Date(row, "日期"),
				Open:         normalize.Float(row, "开盘"),
				High:         normalize.Float(row, "最高"),
				Low:          normalize.Float(row, "最低"),
				Close:        normalize.Float(row, "收盘"),
				Volume:       normalize.Int(row, "成交量"),
				Amount:       normalize.Decimal(row, "成交额"),
				Amplitude:    normalize.Float(row, "振幅"),
				ChangePct:    normalize.Float(row, "涨跌幅"),
				ChangeAmount: normalize.Float(row, "涨跌额"),
				TurnoverRate: normalize.Float(row, "换手率"),
			})
		}
	}
	return c.persist(ctx, records, store.ReplaceLatest)
}
