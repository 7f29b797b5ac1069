package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"budvest_data_service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.ProviderConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	})
	c.retryInterval = time.Millisecond
	return c
}

func TestFetch_DecodesRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/stock_zh_a_hist", r.URL.Path)
		assert.Equal(t, "600519", r.URL.Query().Get("symbol"))
		assert.Equal(t, "qfq", r.URL.Query().Get("adjust"))
		assert.Equal(t, "20240501", r.URL.Query().Get("start_date"))
		w.Write([]byte(`[{"日期":"2024-05-10T00:00:00.000","收盘":1712.5,"成交量":31200}]`))
	})

	res := c.Func(EndpointStockHist)(context.Background(), Request{
		Symbol:    "600519",
		StartDate: "20240501",
		EndDate:   "20240510",
	})
	require.Equal(t, StatusOK, res.Status, "err: %v", res.Err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, json.Number("1712.5"), res.Rows[0]["收盘"])
}

func TestFetch_EmptyArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	res := c.Fetch(context.Background(), EndpointStockSpot, nil)
	assert.Equal(t, StatusEmpty, res.Status)
	assert.NoError(t, res.Err)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"代码":"000001"}]`))
	})
	res := c.Fetch(context.Background(), EndpointIndexSpot, nil)
	require.Equal(t, StatusOK, res.Status, "err: %v", res.Err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	})
	res := c.Fetch(context.Background(), EndpointStockNews, nil)
	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, int32(1), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(res.Err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestFetch_MalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"boom"}`))
	})
	res := c.Fetch(context.Background(), EndpointCCTVNews, nil)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
}

func TestFetch_Unreachable(t *testing.T) {
	c := NewClient(config.ProviderConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	res := c.Fetch(context.Background(), EndpointStockSpot, nil)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestQuery(t *testing.T) {
	q := Query(EndpointFundFlow, Request{Symbol: "000001", Market: "sz"})
	assert.Equal(t, "000001", q.Get("stock"))
	assert.Equal(t, "sz", q.Get("market"))

	q = Query(EndpointMarginSSE, Request{Date: "20240510"})
	assert.Equal(t, "20240510", q.Get("date"))
	assert.Empty(t, q.Get("symbol"))

	assert.Equal(t, "今日", Query(EndpointFundFlowRank, Request{}).Get("indicator"))
}

func TestOK_NoRowsIsEmpty(t *testing.T) {
	assert.Equal(t, StatusEmpty, OK(nil).Status)
	assert.Equal(t, "failed", Failed(errors.New("x")).Status.String())
}
