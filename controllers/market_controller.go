package controllers

import (
	"net/http"

	"budvest_data_service/services/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MarketController serves the collected market data
type MarketController struct {
	store *store.Store
}

// NewMarketController creates a new market controller
func NewMarketController(st *store.Store) *MarketController {
	return &MarketController{store: st}
}

// GetQuotes returns the latest spot quotes
// GET /api/v1/market/quotes?symbols=600519,000001&limit=100
func (mc *MarketController) GetQuotes(c *gin.Context) {
	symbols := querySymbols(c)
	limit := queryLimit(c, 100)
	quotes, err := mc.store.LatestQuotes(c.Request.Context(), symbols, limit)
	if err != nil {
		mc.fail(c, "quotes", err)
		return
	}
	successResponse(c, quotes, &MetaInfo{Total: len(quotes), Limit: limit})
}

// GetIndices returns index spot quotes
// GET /api/v1/market/indices
func (mc *MarketController) GetIndices(c *gin.Context) {
	indices, err := mc.store.Indices(c.Request.Context(), querySymbols(c))
	if err != nil {
		mc.fail(c, "indices", err)
		return
	}
	successResponse(c, indices, &MetaInfo{Total: len(indices)})
}

// GetKline returns daily bars, newest first
// GET /api/v1/market/kline/:symbol
func (mc *MarketController) GetKline(c *gin.Context) {
	symbol := c.Param("symbol")
	limit := queryLimit(c, 60)
	bars, err := mc.store.DailyKlines(c.Request.Context(), symbol, limit)
	if err != nil {
		mc.fail(c, "kline", err)
		return
	}
	successResponse(c, bars, &MetaInfo{Total: len(bars), Limit: limit, Query: symbol})
}

// GetNews returns stock news
// GET /api/v1/market/news?symbol=600519
func (mc *MarketController) GetNews(c *gin.Context) {
	symbol := c.Query("symbol")
	limit := queryLimit(c, 50)
	news, err := mc.store.StockNews(c.Request.Context(), symbol, limit)
	if err != nil {
		mc.fail(c, "news", err)
		return
	}
	successResponse(c, news, &MetaInfo{Total: len(news), Limit: limit, Query: symbol})
}

// GetPolicyNews returns policy news
// GET /api/v1/market/policy-news?category=政策新闻
func (mc *MarketController) GetPolicyNews(c *gin.Context) {
	category := c.Query("category")
	limit := queryLimit(c, 50)
	news, err := mc.store.PolicyNews(c.Request.Context(), category, limit)
	if err != nil {
		mc.fail(c, "policy news", err)
		return
	}
	successResponse(c, news, &MetaInfo{Total: len(news), Limit: limit, Query: category})
}

// GetFundFlow returns the fund flow history of a stock
// GET /api/v1/market/fund-flow/:symbol
func (mc *MarketController) GetFundFlow(c *gin.Context) {
	symbol := c.Param("symbol")
	limit := queryLimit(c, 30)
	flows, err := mc.store.FundFlow(c.Request.Context(), symbol, limit)
	if err != nil {
		mc.fail(c, "fund flow", err)
		return
	}
	successResponse(c, flows, &MetaInfo{Total: len(flows), Limit: limit, Query: symbol})
}

// GetMargin returns the margin trading history of a stock
// GET /api/v1/market/margin/:symbol
func (mc *MarketController) GetMargin(c *gin.Context) {
	symbol := c.Param("symbol")
	limit := queryLimit(c, 30)
	rows, err := mc.store.Margin(c.Request.Context(), symbol, limit)
	if err != nil {
		mc.fail(c, "margin", err)
		return
	}
	successResponse(c, rows, &MetaInfo{Total: len(rows), Limit: limit, Query: symbol})
}

// GetEarnings returns earnings announcements
// GET /api/v1/market/earnings?report_date=20240331
func (mc *MarketController) GetEarnings(c *gin.Context) {
	reportDate := c.Query("report_date")
	limit := queryLimit(c, 100)
	rows, err := mc.store.Earnings(c.Request.Context(), reportDate, limit)
	if err != nil {
		mc.fail(c, "earnings", err)
		return
	}
	successResponse(c, rows, &MetaInfo{Total: len(rows), Limit: limit, Query: reportDate})
}

func (mc *MarketController) fail(c *gin.Context, what string, err error) {
	logrus.WithError(err).Errorf("Failed to load %s", what)
	errorResponse(c, http.StatusInternalServerError, "Failed to load "+what)
}
