package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"budvest_data_service/models"
	"budvest_data_service/scheduler"
	"budvest_data_service/services/history"
	"budvest_data_service/services/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type fakeJobs struct {
	mu        sync.Mutex
	triggered []string
	errs      map[string]error
}

func (f *fakeJobs) Jobs() []scheduler.JobInfo {
	return []scheduler.JobInfo{
		{Name: "realtime_quotes", Cadence: "every 5m0s", Gated: true, State: scheduler.StateIdle},
		{Name: "margin", Cadence: "daily at 17:00", State: scheduler.StateRunning},
	}
}

func (f *fakeJobs) Trigger(name string) error {
	if err, ok := f.errs[name]; ok {
		return err
	}
	f.mu.Lock()
	f.triggered = append(f.triggered, name)
	f.mu.Unlock()
	return nil
}

type env struct {
	router *gin.Engine
	db     *gorm.DB
	jobs   *fakeJobs
}

func setup(t *testing.T) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.MigrateMarketModels(db))
	require.NoError(t, models.MigrateJobModels(db))
	require.NoError(t, models.MigrateAdminModels(db))

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, models.SeedAdminUser(db, "admin", string(hash)))

	jobs := &fakeJobs{errs: map[string]error{
		"margin":     scheduler.ErrJobBusy,
		"stock_news": scheduler.ErrShuttingDown,
		"nope":       fmt.Errorf("%q: %w", "nope", scheduler.ErrUnknownJob),
	}}

	router := gin.New()
	SetupRoutes(router, Deps{
		DB:        db,
		Store:     store.New(db),
		Jobs:      jobs,
		Runs:      history.NewDBRecorder(db),
		JWTSecret: testSecret,
	})
	return env{router: router, db: db, jobs: jobs}
}

func (e env) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e env) login(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin", "password": "s3cret"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func TestHealthAndReady(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	jobs := body["jobs"].(map[string]interface{})
	assert.EqualValues(t, 2, jobs["registered"])
	assert.EqualValues(t, 1, jobs["running"])
}

func TestListJobsAndRuns(t *testing.T) {
	e := setup(t)
	rec := history.NewDBRecorder(e.db)
	require.NoError(t, rec.Record(context.Background(), scheduler.RunResult{
		RunID: "run-1", Job: "margin", Trigger: scheduler.TriggerSchedule, Outcome: scheduler.OutcomeSuccess,
	}))

	w := e.do(t, http.MethodGet, "/api/v1/jobs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"realtime_quotes"`)

	w = e.do(t, http.MethodGet, "/api/v1/jobs/runs?job=margin", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"run-1"`)
}

func TestMarketQuotes(t *testing.T) {
	e := setup(t)
	price := 1688.5
	st := store.New(e.db)
	_, err := st.Persist(context.Background(), []models.Record{
		&models.StockRealtime{Symbol: "600519", Name: "贵州茅台", Price: &price},
		&models.StockRealtime{Symbol: "000001", Name: "平安银行"},
	}, store.ReplaceLatest)
	require.NoError(t, err)

	w := e.do(t, http.MethodGet, "/api/v1/market/quotes?symbols=600519", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    []models.StockRealtime `json:"data"`
		Meta    struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "600519", resp.Data[0].Symbol)
	assert.Equal(t, 1, resp.Meta.Total)
}

func TestMarketEmptyTables(t *testing.T) {
	e := setup(t)
	for _, path := range []string{
		"/api/v1/market/indices",
		"/api/v1/market/kline/600519",
		"/api/v1/market/news",
		"/api/v1/market/policy-news",
		"/api/v1/market/fund-flow/600519",
		"/api/v1/market/margin/600519",
		"/api/v1/market/earnings?report_date=20240331",
	} {
		w := e.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestLogin(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.login(t)

	var admin models.AdminUser
	require.NoError(t, e.db.Where("username = ?", "admin").First(&admin).Error)
	assert.NotNil(t, admin.LastLoginAt)
}

func TestLoginLockout(t *testing.T) {
	e := setup(t)
	for i := 0; i < 5; i++ {
		w := e.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin", "password": "wrong"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := e.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin", "password": "s3cret"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestTriggerJob(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodPost, "/api/v1/admin/jobs/realtime_quotes/run", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := e.login(t)
	cases := map[string]int{
		"realtime_quotes": http.StatusAccepted,
		"margin":          http.StatusConflict,
		"stock_news":      http.StatusServiceUnavailable,
		"nope":            http.StatusNotFound,
	}
	for name, want := range cases {
		w := e.do(t, http.MethodPost, "/api/v1/admin/jobs/"+name+"/run", nil, token)
		assert.Equal(t, want, w.Code, name)
	}
	assert.Equal(t, []string{"realtime_quotes"}, e.jobs.triggered)
}
