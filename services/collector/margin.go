package collector

import (
	"context"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// The two exchanges publish margin details under disjoint column names.
// Neither reports net financing buys or net short sales, so those stay
// absent.
var (
	sseMarginFields = normalize.Fields{
		"symbol":               {"标的证券代码"},
		"name":                 {"标的证券简称"},
		"trade_date":           {"信用交易日期"},
		"margin_balance":       {"融资余额"},
		"margin_buy":           {"融资买入额"},
		"margin_repay":         {"融资偿还额"},
		"short_balance":        {"融券余额"},
		"short_sell_volume":    {"融券卖出量"},
		"short_repay_volume":   {"融券偿还量"},
		"margin_short_balance": {"融资融券余额"},
	}
	szseMarginFields = normalize.Fields{
		"symbol":               {"证券代码"},
		"name":                 {"证券简称"},
		"trade_date":           {"信用交易日期"},
		"margin_balance":       {"融资余额(元)", "融资余额"},
		"margin_buy":           {"融资买入额(元)", "融资买入额"},
		"margin_repay":         {"融资偿还额(元)", "融资偿还额"},
		"short_balance":        {"融券余量金额(元)", "融券余额(元)"},
		"short_sell_volume":    {"融券卖出量(股)", "融券卖出量"},
		"short_repay_volume":   {"融券偿还量(股)", "融券偿还量"},
		"margin_short_balance": {"融资融券余额(元)", "融资融券余额"},
	}
)

type marginExchange struct {
	market     string
	dateLayout string
	fields     normalize.Fields
	fetch      provider.FetchFunc
}

// Margin collects margin financing and securities lending details. Each
// exchange serves one table per day; symbols are routed by board digit and
// filtered from it.
type Margin struct {
	base
	sse  marginExchange
	szse marginExchange
}

func NewMargin(sse, szse provider.FetchFunc, deps Deps) *Margin {
	return &Margin{
		base: newBase("margin", deps),
		sse:  marginExchange{market: "sh", dateLayout: "20060102", fields: sseMarginFields, fetch: sse},
		szse: marginExchange{market: "sz", dateLayout: "2006-01-02", fields: szseMarginFields, fetch: szse},
	}
}

func (c *Margin) Collect(ctx context.Context, p Params) (int, error) {
	now := c.now()

	wanted := map[string]map[string]bool{}
	exchanges := []marginExchange{c.sse, c.szse}
	if symbols := c.stocks(p); !p.MarketWide && len(symbols) > 0 {
		exchanges = nil
		for _, s := range symbols {
			market := Exchange(s)
			if wanted[market] == nil {
				wanted[market] = map[string]bool{}
				if market == "sh" {
					exchanges = append(exchanges, c.sse)
				} else {
					exchanges = append(exchanges, c.szse)
				}
			}
			wanted[market][s] = true
		}
	}

	today := now.Format("2006-01-02")
	var records []models.Record
	for _, ex := range exchanges {
		req := provider.Request{Market: ex.market, Date: now.Format(ex.dateLayout)}
		for _, u := range c.fetchAll(ctx, ex.fetch, []provider.Request{req}) {
			for _, row := range u.rows {
				m := marginRecord(ex.fields, row)
				if set := wanted[ex.market]; set != nil && !set[m.Symbol] {
					continue
				}
				if m.TradeDate == "" {
					m.TradeDate = today
				}
				records = append(records, m)
			}
		}
	}
	return c.persist(ctx, records, store.ReplaceLatest)
}

func marginRecord(f normalize.Fields, row normalize.Row) *models.MarginTrading {
	return &models.MarginTrading{
		Symbol:             f.String(row, "symbol"),
		Name:               f.String(row, "name"),
		TradeDate:          f.Date(row, "trade_date"),
		MarginBalance:      f.Decimal(row, "margin_balance"),
		MarginBuy:          f.Decimal(row, "margin_buy"),
		MarginRepay:        f.Decimal(row, "margin_repay"),
		ShortBalance:       f.Decimal(row, "short_balance"),
		ShortSellVolume:    f.Int(row, "short_sell_volume"),
		ShortRepayVolume:   f.Int(row, "short_repay_volume"),
		MarginShortBalance: f.Decimal(row, "margin_short_balance"),
	}
}
