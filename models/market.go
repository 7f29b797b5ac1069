package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Record is a persistable market data row identified by a natural key
type Record interface {
	TableName() string
	// NaturalKey lists the column names forming the unique key
	NaturalKey() []string
	// HasKey reports whether every key field is populated
	HasKey() bool
}

func present(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// StockRealtime is the latest spot quote of an A-share stock
type StockRealtime struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	Symbol               string              `gorm:"size:10;not null;uniqueIndex:uq_stock_realtime_symbol" json:"symbol"`
	Name                 string              `gorm:"size:50" json:"name"`
	Price                *float64            `json:"price"`
	ChangePct            *float64            `json:"change_pct"`
	ChangeAmount         *float64            `json:"change_amount"`
	Volume               *int64              `json:"volume"`
	Amount               decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"amount"`
	High                 *float64            `json:"high"`
	Low                  *float64            `json:"low"`
	Open                 *float64            `json:"open"`
	PrevClose            *float64            `json:"prev_close"`
	Amplitude            *float64            `json:"amplitude"`
	VolumeRatio          *float64            `json:"volume_ratio"`
	TurnoverRate         *float64            `json:"turnover_rate"`
	PERatio              *float64            `gorm:"column:pe_ratio" json:"pe_ratio"`
	PBRatio              *float64            `gorm:"column:pb_ratio" json:"pb_ratio"`
	TotalMarketCap       decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"total_market_cap"`
	CirculatingMarketCap decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"circulating_market_cap"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (StockRealtime) TableName() string { return "stock_realtime" }
func (StockRealtime) NaturalKey() []string { return []string{"symbol"} }
func (r *StockRealtime) HasKey() bool { return present(r.Symbol) }

// StockDaily is one daily K-line bar
type StockDaily struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	Symbol       string              `gorm:"size:10;not null;uniqueIndex:uq_stock_daily_key,priority:1" json:"symbol"`
	TradeDate    string              `gorm:"size:10;not null;uniqueIndex:uq_stock_daily_key,priority:2" json:"trade_date"`
	Open         *float64            `json:"open"`
	High         *float64            `json:"high"`
	Low          *float64            `json:"low"`
	Close        *float64            `json:"close"`
	Volume       *int64              `json:"volume"`
	Amount       decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"amount"`
	Amplitude    *float64            `json:"amplitude"`
	ChangePct    *float64            `json:"change_pct"`
	ChangeAmount *float64            `json:"change_amount"`
	TurnoverRate *float64            `json:"turnover_rate"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func (StockDaily) TableName() string { return "stock_daily" }
func (StockDaily) NaturalKey() []string { return []string{"symbol", "trade_date"} }
func (r *StockDaily) HasKey() bool { return present(r.Symbol, r.TradeDate) }

// IndexRealtime is the latest spot quote of a market index
type IndexRealtime struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	Symbol       string              `gorm:"size:20;not null;uniqueIndex:uq_index_realtime_symbol" json:"symbol"`
	Name         string              `gorm:"size:50" json:"name"`
	Price        *float64            `json:"price"`
	ChangePct    *float64            `json:"change_pct"`
	ChangeAmount *float64            `json:"change_amount"`
	Volume       *int64              `json:"volume"`
	Amount       decimal.NullDecimal `gorm:"type:decimal(24,2)" json:"amount"`
	High         *float64            `json:"high"`
	Low          *float64            `json:"low"`
	Open         *float64            `json:"open"`
	PrevClose    *float64            `json:"prev_close"`
	Amplitude    *float64            `json:"amplitude"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func (IndexRealtime) TableName() string { return "index_realtime" }
func (IndexRealtime) NaturalKey() []string { return []string{"symbol"} }
func (r *IndexRealtime) HasKey() bool { return present(r.Symbol) }

// StockNews is a news item attached to a stock. Stored once, never updated.
type StockNews struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Symbol      string    `gorm:"size:10;index" json:"symbol"`
	Title       string    `gorm:"not null;uniqueIndex:uq_stock_news_key,priority:1" json:"title"`
	Content     string    `json:"content"`
	Source      string    `gorm:"size:100" json:"source"`
	PublishTime string    `gorm:"size:19;not null;index;uniqueIndex:uq_stock_news_key,priority:2" json:"publish_time"`
	URL         string    `gorm:"column:url" json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (StockNews) TableName() string { return "stock_news" }
func (StockNews) NaturalKey() []string { return []string{"title", "publish_time"} }
func (r *StockNews) HasKey() bool { return present(r.Title, r.PublishTime) }

// PolicyNews is a macro or policy news item. Stored once, never updated.
type PolicyNews struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null;uniqueIndex:uq_policy_news_key,priority:1" json:"title"`
	Content     string    `json:"content"`
	Source      string    `gorm:"size:100" json:"source"`
	PublishTime string    `gorm:"size:19;not null;index;uniqueIndex:uq_policy_news_key,priority:2" json:"publish_time"`
	Category    string    `gorm:"size:50" json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PolicyNews) TableName() string { return "policy_news" }
func (PolicyNews) NaturalKey() []string { return []string{"title", "publish_time"} }
func (r *PolicyNews) HasKey() bool { return present(r.Title, r.PublishTime) }

// EarningsCalendar is an earnings announcement (forecast or express report)
type EarningsCalendar struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"size:10;not null;uniqueIndex:uq_earnings_key,priority:1" json:"symbol"`
	Name       string    `gorm:"size:50" json:"name"`
	ReportDate string    `gorm:"size:8;not null;uniqueIndex:uq_earnings_key,priority:2" json:"report_date"`
	ActualDate string    `gorm:"size:10" json:"actual_date"`
	ReportType string    `gorm:"size:20;not null;uniqueIndex:uq_earnings_key,priority:3" json:"report_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func (EarningsCalendar) TableName() string { return "earnings_calendar" }
func (EarningsCalendar) NaturalKey() []string {
	return []string{"symbol", "report_date", "report_type"}
}
func (r *EarningsCalendar) HasKey() bool { return present(r.Symbol, r.ReportDate, r.ReportType) }

// FundFlow is the capital flow breakdown of a stock for one trading day
type FundFlow struct {
	ID                     uint                `gorm:"primaryKey" json:"id"`
	Symbol                 string              `gorm:"size:10;not null;uniqueIndex:uq_fund_flow_key,priority:1" json:"symbol"`
	Name                   string              `gorm:"size:50" json:"name"`
	TradeDate              string              `gorm:"size:10;not null;uniqueIndex:uq_fund_flow_key,priority:2" json:"trade_date"`
	ClosePrice             *float64            `json:"close_price"`
	ChangePct              *float64            `json:"change_pct"`
	MainNetInflow          decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"main_net_inflow"`
	MainNetInflowPct       *float64            `json:"main_net_inflow_pct"`
	SuperLargeNetInflow    decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"super_large_net_inflow"`
	SuperLargeNetInflowPct *float64            `json:"super_large_net_inflow_pct"`
	LargeNetInflow         decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"large_net_inflow"`
	LargeNetInflowPct      *float64            `json:"large_net_inflow_pct"`
	MediumNetInflow        decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"medium_net_inflow"`
	MediumNetInflowPct     *float64            `json:"medium_net_inflow_pct"`
	SmallNetInflow         decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"small_net_inflow"`
	SmallNetInflowPct      *float64            `json:"small_net_inflow_pct"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

func (FundFlow) TableName() string { return "fund_flow" }
func (FundFlow) NaturalKey() []string { return []string{"symbol", "trade_date"} }
func (r *FundFlow) HasKey() bool { return present(r.Symbol, r.TradeDate) }

// MarginTrading is the margin financing and securities lending balance of a
// stock for one trading day. MarginNetBuy and ShortNetVolume stay nil when the
// exchange endpoint does not report them.
type MarginTrading struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	Symbol             string              `gorm:"size:10;not null;uniqueIndex:uq_margin_key,priority:1" json:"symbol"`
	Name               string              `gorm:"size:50" json:"name"`
	TradeDate          string              `gorm:"size:10;not null;uniqueIndex:uq_margin_key,priority:2" json:"trade_date"`
	MarginBalance      decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"margin_balance"`
	MarginBuy          decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"margin_buy"`
	MarginRepay        decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"margin_repay"`
	MarginNetBuy       decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"margin_net_buy"`
	ShortBalance       decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"short_balance"`
	ShortSellVolume    *int64              `json:"short_sell_volume"`
	ShortRepayVolume   *int64              `json:"short_repay_volume"`
	ShortNetVolume     *int64              `json:"short_net_volume"`
	MarginShortBalance decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"margin_short_balance"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (MarginTrading) TableName() string { return "margin_trading" }
func (MarginTrading) NaturalKey() []string { return []string{"symbol", "trade_date"} }
func (r *MarginTrading) HasKey() bool { return present(r.Symbol, r.TradeDate) }

// MigrateMarketModels runs database migrations for market data tables
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&StockRealtime{},
		&StockDaily{},
		&IndexRealtime{},
		&StockNews{},
		&PolicyNews{},
		&EarningsCalendar{},
		&FundFlow{},
		&MarginTrading{},
	)
}
