package collector

import (
	"context"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// FundFlow collects capital flow per stock, or today's market-wide ranking
// when no symbols are configured.
type FundFlow struct {
	base
	history provider.FetchFunc
	rank    provider.FetchFunc
}

func NewFundFlow(history, rank provider.FetchFunc, deps Deps) *FundFlow {
	return &FundFlow{base: newBase("fund_flow", deps), history: history, rank: rank}
}

func (c *FundFlow) Collect(ctx context.Context, p Params) (int, error) {
	symbols := c.stocks(p)
	if p.MarketWide || len(symbols) == 0 {
		return c.collectRank(ctx)
	}

	reqs := make([]provider.Request, 0, len(symbols))
	for _, s := range symbols {
		reqs = append(reqs, provider.Request{Symbol: s, Market: Exchange(s)})
	}

	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.history, reqs) {
		for _, row := range u.rows {
			f := fundFlow(row)
			f.Symbol = u.req.Symbol
			f.TradeDate = normalize.Date(row, "日期")
			f.ClosePrice = normalize.Float(row, "收盘价")
			records = append(records, f)
		}
	}
	return c.persist(ctx, records, store.ReplaceLatest)
}

func (c *FundFlow) collectRank(ctx context.Context) (int, error) {
	today := c.today()
	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.rank, []provider.Request{{}}) {
		for _, row := range u.rows {
			f := fundFlow(row)
			f.Symbol = normalize.String(row, "代码")
			f.Name = normalize.String(row, "名称")
			f.TradeDate = today
			f.ClosePrice = normalize.Float(row, "最新价")
			records = append(records, f)
		}
	}
	return c.persist(ctx, records, store.ReplaceLatest)
}

// fundFlow maps the columns shared by the history and ranking endpoints.
// The ranking prefixes them with the period, e.g. "今日主力净流入-净额".
func fundFlow(row normalize.Row) *models.FundFlow {
	return &models.FundFlow{
		ChangePct:              normalize.Float(row, "涨跌幅", "今日涨跌幅"),
		MainNetInflow:          normalize.Decimal(row, "主力净流入-净额", "今日主力净流入-净额"),
		MainNetInflowPct:       normalize.Float(row, "主力净流入-净占比", "今日主力净流入-净占比"),
		SuperLargeNetInflow:    normalize.Decimal(row, "超大单净流入-净额", "今日超大单净流入-净额"),
		SuperLargeNetInflowPct: normalize.Float(row, "超大单净流入-净占比", "今日超大单净流入-净占比"),
		LargeNetInflow:         normalize.Decimal(row, "大单净流入-净额", "今日大单净流入-净额"),
		LargeNetInflowPct:      normalize.Float(row, "大单净流入-净占比", "今日大单净流入-净占比"),
		MediumNetInflow:        normalize.Decimal(row, "中单净流入-净额", "今日中单净流入-净额"),
		MediumNetInflowPct:     normalize.Float(row, "中单净流入-净占比", "今日中单净流入-净占比"),
		SmallNetInflow:         normalize.Decimal(row, "小单净流入-净额", "今日小单净流入-净额"),
		SmallNetInflowPct:      normalize.Float(row, "小单净流入-净占比", "今日小单净流入-净占比"),
	}
}
