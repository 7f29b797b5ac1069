package collector

import (
	"context"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// StockRealtime collects A-share spot quotes. The provider only serves the
// whole market, so rows are filtered to the requested symbols.
type StockRealtime struct {
	base
	fetch provider.FetchFunc
}

func NewStockRealtime(fetch provider.FetchFunc, deps Deps) *StockRealtime {
	return &StockRealtime{base: newBase("stock_realtime", deps), fetch: fetch}
}

func (c *StockRealtime) Collect(ctx context.Context, p Params) (int, error) {
	var wanted map[string]bool
	if !p.MarketWide {
		wanted = symbolSet(c.stocks(p))
	}

	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.fetch, []provider.Request{{}}) {
		for _, row := range u.rows {
			q := stockQuote(row)
			if len(wanted) > 0 && !wanted[q.Symbol] {
				continue
			}
			records = append(records, q)
		}
	}
	return c.persist(ctx, records, store.ReplaceLatest)
}

func stockQuote(row normalize.Row) *models.StockRealtime {
	return &models.StockRealtime{
		Symbol:               normalize.String(row, "代码"),
		Name:                 normalize.String(row, "名称"),
		Price:                normalize.Float(row, "最新价"),
		ChangePct:            normalize.Float(row, "涨跌幅"),
		ChangeAmount:         normalize.Float(row, "涨跌额"),
		Volume:               normalize.Int(row, "成交量"),
		Amount:               normalize.Decimal(row, "成交额"),
		High:                 normalize.Float(row, "最高"),
		Low:                  normalize.Float(row, "最低"),
		Open:                 normalize.Float(row, "今开"),
		PrevClose:            normalize.Float(row, "昨收"),
		Amplitude:            normalize.Float(row, "振幅"),
		VolumeRatio:          normalize.Float(row, "量比"),
		TurnoverRate:         normalize.Float(row, "换手率"),
		PERatio:              normalize.Float(row, "市盈率-动态", "市盈率"),
		PBRatio:              normalize.Float(row, "市净率"),
		TotalMarketCap:       normalize.Decimal(row, "总市值"),
		CirculatingMarketCap: normalize.Decimal(row, "流通市值"),
	}
}

// IndexRealtime collects spot quotes of the configured indices
type IndexRealtime struct {
	base
	fetch provider.FetchFunc
}

func NewIndexRealtime(fetch provider.FetchFunc, deps Deps) *IndexRealtime {
	return &IndexRealtime{base: newBase("index_realtime", deps), fetch: fetch}
}

func (c *IndexRealtime) Collect(ctx context.Context, p Params) (int, error) {
	symbols := p.Symbols
	if len(symbols) == 0 {
		symbols = c.defaults.Indices
	}
	var wanted map[string]bool
	if !p.MarketWide {
		wanted = symbolSet(symbols)
	}

	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.fetch, []provider.Request{{}}) {
		for _, row := range u.rows {
			q := &models.IndexRealtime{
				Symbol:       normalize.String(row, "代码"),
				Name:         normalize.String(row, "名称"),
				Price:        normalize.Float(row, "最新价"),
				ChangePct:    normalize.Float(row, "涨跌幅"),
				ChangeAmount: normalize.Float(row, "涨跌额"),
				Volume:       normalize.Int(row, "成交量"),
				Amount:       normalize.Decimal(row, "成交额"),
				High:         normalize.Float(row, "最高"),
				Low:          normalize.Float(row, "最低"),
				Open:         normalize.Float(row, "今开"),
				PrevClose:    normalize.Float(row, "昨收"),
				Amplitude:    normalize.Float(row, "振幅"),
			}
			if len(wanted) > 0 && !wanted[q.Symbol] {
				continue
			}
			records = append(records, q)
		}
	}
	return c.persist(ctx, records, store.ReplaceLatest)
}
