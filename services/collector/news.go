package collector

import (
	"context"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// StockNews collects per-stock news. Items are stored once.
type StockNews struct {
	base
	fetch provider.FetchFunc
}

func NewStockNews(fetch provider.FetchFunc, deps Deps) *StockNews {
	return &StockNews{base: newBase("stock_news", deps), fetch: fetch}
}

func (c *StockNews) Collect(ctx context.Context, p Params) (int, error) {
	symbols := c.stocks(p)
	reqs := make([]provider.Request, 0, len(symbols))
	for _, s := range symbols {
		reqs = append(reqs, provider.Request{Symbol: s})
	}

	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.fetch, reqs) {
		for _, row := range u.rows {
			records = append(records, &models.StockNews{
				Symbol:      u.req.Symbol,
				Title:       normalize.String(row, "新闻标题"),
				Content:     normalize.String(row, "新闻内容"),
				Source:      normalize.String(row, "文章来源", "新闻来源"),
				PublishTime: publishTime(row, "发布时间"),
				URL:         normalize.String(row, "新闻链接"),
			})
		}
	}
	return c.persist(ctx, records, store.AppendOnce)
}

// publishTime normalizes a timestamp column, keeping unparseable text as is
func publishTime(row normalize.Row, aliases ...string) string {
	if t := normalize.DateTime(row, aliases...); t != "" {
		return t
	}
	return normalize.String(row, aliases...)
}

const (
	sourceCCTV        = "央视新闻"
	categoryPolicy    = "政策新闻"
	categoryFinancial = "财经新闻"
)

// PolicyNews collects the CCTV evening news transcript of the last N days
// plus a capped batch of financial news.
type PolicyNews struct {
	base
	cctv      provider.FetchFunc
	financial provider.FetchFunc
}

func NewPolicyNews(cctv, financial provider.FetchFunc, deps Deps) *PolicyNews {
	return &PolicyNews{base: newBase("policy_news", deps), cctv: cctv, financial: financial}
}

func (c *PolicyNews) Collect(ctx context.Context, p Params) (int, error) {
	days := p.Days
	if days <= 0 {
		days = defaultPolicyNewsDays
	}
	now := c.now()
	reqs := make([]provider.Request, 0, days)
	for i := 0; i < days; i++ {
		reqs = append(reqs, provider.Request{Date: now.AddDate(0, 0, -i).Format("20060102")})
	}

	var records []models.Record
	for _, u := range c.fetchAll(ctx, c.cctv, reqs) {
		fallback := u.req.Date[:4] + "-" + u.req.Date[4:6] + "-" + u.req.Date[6:]
		for _, row := range u.rows {
			published := normalize.Date(row, "date")
			if published == "" {
				published = fallback
			}
			records = append(records, &models.PolicyNews{
				Title:       normalize.String(row, "title"),
				Content:     normalize.String(row, "content"),
				Source:      sourceCCTV,
				PublishTime: published,
				Category:    categoryPolicy,
			})
		}
	}

	for _, u := range c.fetchAll(ctx, c.financial, []provider.Request{{Symbol: newsProxySymbol}}) {
		rows := u.rows
		if len(rows) > newsProxyLimit {
			rows = rows[:newsProxyLimit]
		}
		for _, row := range rows {
			records = append(records, &models.PolicyNews{
				Title:       normalize.String(row, "新闻标题"),
				Content:     normalize.String(row, "新闻内容"),
				Source:      normalize.String(row, "文章来源", "新闻来源"),
				PublishTime: publishTime(row, "发布时间"),
				Category:    categoryFinancial,
			})
		}
	}
	return c.persist(ctx, records, store.AppendOnce)
}
