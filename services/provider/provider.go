// Package provider is the upstream market data collaborator. Every data kind
// is reached through a FetchFunc returning an explicit Result instead of an
// error, so callers decide what an empty or failed source means.
package provider

import (
	"context"
	"net/url"

	"budvest_data_service/services/normalize"
)

// Status classifies a fetch outcome
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one fetch
type Result struct {
	Status Status
	Rows   []normalize.Row
	Err    error
}

// OK wraps rows; no rows is reported as Empty
func OK(rows []normalize.Row) Result {
	if len(rows) == 0 {
		return Empty()
	}
	return Result{Status: StatusOK, Rows: rows}
}

// Empty is a successful fetch without data
func Empty() Result { return Result{Status: StatusEmpty} }

// Failed wraps a transport or decoding error
func Failed(err error) Result { return Result{Status: StatusFailed, Err: err} }

// Request carries the kind-specific parameters of one unit of work. Dates use
// the formats of the endpoint they are sent to.
type Request struct {
	Symbol    string
	Market    string // "sh" or "sz"
	StartDate string
	EndDate   string
	Date      string
}

// FetchFunc fetches the rows of one data kind
type FetchFunc func(ctx context.Context, req Request) Result

// Upstream endpoint names
const (
	EndpointStockSpot        = "stock_zh_a_spot_em"
	EndpointIndexSpot        = "stock_zh_index_spot_em"
	EndpointStockHist        = "stock_zh_a_hist"
	EndpointStockNews        = "stock_news_em"
	EndpointCCTVNews         = "news_cctv"
	EndpointEarningsForecast = "stock_yjyg_em"
	EndpointEarningsExpress  = "stock_yjkb_em"
	EndpointFundFlow         = "stock_individual_fund_flow"
	EndpointFundFlowRank     = "stock_individual_fund_flow_rank"
	EndpointMarginSSE        = "stock_margin_detail_sse"
	EndpointMarginSZSE       = "stock_margin_detail_szse"
)

// queryBinders translate a Request into endpoint query parameters
var queryBinders = map[string]func(Request) url.Values{
	EndpointIndexSpot: func(Request) url.Values {
		return url.Values{"symbol": {"沪深重要指数"}}
	},
	EndpointStockHist: func(r Request) url.Values {
		return url.Values{
			"symbol":     {r.Symbol},
			"period":     {"daily"},
			"start_date": {r.StartDate},
			"end_date":   {r.EndDate},
			"adjust":     {"qfq"},
		}
	},
	EndpointStockNews: func(r Request) url.Values {
		return url.Values{"symbol": {r.Symbol}}
	},
	EndpointFundFlow: func(r Request) url.Values {
		return url.Values{"stock": {r.Symbol}, "market": {r.Market}}
	},
	EndpointFundFlowRank: func(Request) url.Values {
		return url.Values{"indicator": {"今日"}}
	},
}

// Query returns the query parameters sent for req on endpoint
func Query(endpoint string, req Request) url.Values {
	if bind, ok := queryBinders[endpoint]; ok {
		return bind(req)
	}
	q := url.Values{}
	if req.Symbol != "" {
		q.Set("symbol", req.Symbol)
	}
	if req.Date != "" {
		q.Set("date", req.Date)
	}
	return q
}
