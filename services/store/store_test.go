package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"budvest_data_service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.MigrateMarketModels(db))
	return db
}

func fp(v float64) *float64 { return &v }

func quote(symbol string, price float64) *models.StockRealtime {
	return &models.StockRealtime{Symbol: symbol, Name: "name-" + symbol, Price: fp(price)}
}

func TestPersist_ReplaceLatestIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	n, err := s.Persist(ctx, []models.Record{quote("600519", 1700)}, ReplaceLatest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var first models.StockRealtime
	require.NoError(t, db.First(&first, "symbol = ?", "600519").Error)

	_, err = s.Persist(ctx, []models.Record{quote("600519", 1700)}, ReplaceLatest)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.StockRealtime{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var again models.StockRealtime
	require.NoError(t, db.First(&again, "symbol = ?", "600519").Error)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1700.0, *again.Price)
	assert.Equal(t, first.Name, again.Name)
}

func TestPersist_ReplaceLatestOverwritesNonKeyFields(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	_, err := s.Persist(ctx, []models.Record{quote("000001", 10.5)}, ReplaceLatest)
	require.NoError(t, err)
	var before models.StockRealtime
	require.NoError(t, db.First(&before, "symbol = ?", "000001").Error)

	updated := quote("000001", 11.2)
	updated.Name = "平安银行"
	_, err = s.Persist(ctx, []models.Record{updated}, ReplaceLatest)
	require.NoError(t, err)

	var after models.StockRealtime
	require.NoError(t, db.First(&after, "symbol = ?", "000001").Error)
	assert.Equal(t, 11.2, *after.Price)
	assert.Equal(t, "平安银行", after.Name)
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt), "created_at must survive updates")
}

func TestPersist_AppendOnceSkipsCollisions(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	item := func(content string) models.Record {
		return &models.StockNews{
			Symbol:      "600519",
			Title:       "茅台发布年报",
			Content:     content,
			PublishTime: "2024-05-10 09:00:00",
		}
	}

	n, err := s.Persist(ctx, []models.Record{item("first")}, AppendOnce)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Persist(ctx, []models.Record{item("second")}, AppendOnce)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var rows []models.StockNews
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0].Content)
}

func TestPersist_CompositeKey(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	bars := []models.Record{
		&models.StockDaily{Symbol: "600519", TradeDate: "2024-05-09", Close: fp(1700)},
		&models.StockDaily{Symbol: "600519", TradeDate: "2024-05-10", Close: fp(1712)},
		&models.StockDaily{Symbol: "000001", TradeDate: "2024-05-10", Close: fp(10)},
	}
	_, err := s.Persist(ctx, bars, ReplaceLatest)
	require.NoError(t, err)

	// overlapping window converges to one row per key
	_, err = s.Persist(ctx, []models.Record{
		&models.StockDaily{Symbol: "600519", TradeDate: "2024-05-10", Close: fp(1715)},
	}, ReplaceLatest)
	require.NoError(t, err)

	got, err := s.DailyKlines(ctx, "600519", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-10", got[0].TradeDate)
	assert.Equal(t, 1715.0, *got[0].Close)
}

func TestPersist_SkipsRecordsWithoutKey(t *testing.T) {
	db := openTestDB(t)
	s := New(db)

	n, err := s.Persist(context.Background(), []models.Record{quote("", 1), quote("600000", 2)}, ReplaceLatest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPersist_SkipsNilRecords(t *testing.T) {
	s := New(openTestDB(t))

	var typedNil *models.StockRealtime
	records := []models.Record{nil, typedNil, (*models.StockNews)(nil), quote("600000", 2)}
	n, err := s.Persist(context.Background(), records, ReplaceLatest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPersist_InvalidPolicy(t *testing.T) {
	s := New(openTestDB(t))
	_, err := s.Persist(context.Background(), nil, Policy(0))
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestPersist_ConcurrentCallers(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var batch []models.Record
			for i := 0; i < 20; i++ {
				batch = append(batch, quote(fmt.Sprintf("%06d", i), float64(w)))
				batch = append(batch, &models.PolicyNews{Title: fmt.Sprintf("t%d", i), PublishTime: "2024-05-10"})
			}
			_, err := s.Persist(ctx, batch, ReplaceLatest)
			assert.NoError(t, err)
		}(w)
	}
	wg.Wait()

	var quotes int64
	require.NoError(t, db.Model(&models.StockRealtime{}).Count(&quotes).Error)
	assert.Equal(t, int64(20), quotes)

	var news int64
	require.NoError(t, db.Model(&models.PolicyNews{}).Count(&news).Error)
	assert.Equal(t, int64(20), news)
}

func TestNonKeyColumns(t *testing.T) {
	s := New(openTestDB(t))
	cols, err := s.nonKeyColumns(&models.MarginTrading{})
	require.NoError(t, err)

	assert.NotContains(t, cols, "id")
	assert.NotContains(t, cols, "symbol")
	assert.NotContains(t, cols, "trade_date")
	assert.NotContains(t, cols, "created_at")
	assert.Contains(t, cols, "updated_at")
	assert.Contains(t, cols, "margin_balance")
	assert.Contains(t, cols, "short_net_volume")
}
