package collector

import (
	"time"

	"budvest_data_service/config"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"
)

// Sources holds the fetch function of every upstream endpoint
type Sources struct {
	StockSpot        provider.FetchFunc
	IndexSpot        provider.FetchFunc
	StockHist        provider.FetchFunc
	StockNews        provider.FetchFunc
	CCTVNews         provider.FetchFunc
	EarningsForecast provider.FetchFunc
	EarningsExpress  provider.FetchFunc
	FundFlow         provider.FetchFunc
	FundFlowRank     provider.FetchFunc
	MarginSSE        provider.FetchFunc
	MarginSZSE       provider.FetchFunc
}

// NewSources binds every endpoint to client
func NewSources(client *provider.Client) Sources {
	return Sources{
		StockSpot:        client.Func(provider.EndpointStockSpot),
		IndexSpot:        client.Func(provider.EndpointIndexSpot),
		StockHist:        client.Func(provider.EndpointStockHist),
		StockNews:        client.Func(provider.EndpointStockNews),
		CCTVNews:         client.Func(provider.EndpointCCTVNews),
		EarningsForecast: client.Func(provider.EndpointEarningsForecast),
		EarningsExpress:  client.Func(provider.EndpointEarningsExpress),
		FundFlow:         client.Func(provider.EndpointFundFlow),
		FundFlowRank:     client.Func(provider.EndpointFundFlowRank),
		MarginSSE:        client.Func(provider.EndpointMarginSSE),
		MarginSZSE:       client.Func(provider.EndpointMarginSZSE),
	}
}

// Set is the full collector set of the service
type Set struct {
	StockRealtime *StockRealtime
	IndexRealtime *IndexRealtime
	StockDaily    *StockDaily
	StockNews     *StockNews
	PolicyNews    *PolicyNews
	Earnings      *Earnings
	FundFlow      *FundFlow
	Margin        *Margin
}

// NewSet builds every collector from configuration
func NewSet(cfg config.Config, src Sources, st *store.Store) Set {
	loc := cfg.Location()
	deps := Deps{
		Store: st,
		Defaults: Defaults{
			Stocks:  cfg.Market.DefaultStocks,
			Indices: cfg.Market.IndexList,
		},
		Now:         func() time.Time { return time.Now().In(loc) },
		Concurrency: cfg.Provider.Concurrency,
	}
	return Set{
		StockRealtime: NewStockRealtime(src.StockSpot, deps),
		IndexRealtime: NewIndexRealtime(src.IndexSpot, deps),
		StockDaily:    NewStockDaily(src.StockHist, deps),
		StockNews:     NewStockNews(src.StockNews, deps),
		PolicyNews:    NewPolicyNews(src.CCTVNews, src.StockNews, deps),
		Earnings:      NewEarnings(src.EarningsForecast, src.EarningsExpress, deps),
		FundFlow:      NewFundFlow(src.FundFlow, src.FundFlowRank, deps),
		Margin:        NewMargin(src.MarginSSE, src.MarginSZSE, deps),
	}
}
