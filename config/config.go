package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// TradingHours holds the two intraday sessions as HH:MM strings
type TradingHours struct {
	MorningStart   string `yaml:"morning_start"`
	MorningEnd     string `yaml:"morning_end"`
	AfternoonStart string `yaml:"afternoon_start"`
	AfternoonEnd   string `yaml:"afternoon_end"`
}

// MarketConfig describes the exchange calendar and default universes
type MarketConfig struct {
	Timezone      string       `yaml:"timezone"`
	TradingHours  TradingHours `yaml:"trading_hours"`
	DefaultStocks []string     `yaml:"default_stocks"`
	IndexList     []string     `yaml:"index_list"`
}

// JobsConfig holds per-job cadences and the warm-up sequence
type JobsConfig struct {
	RealtimeInterval   time.Duration `yaml:"realtime_interval"`
	IndexInterval      time.Duration `yaml:"index_interval"`
	FundFlowInterval   time.Duration `yaml:"fund_flow_interval"`
	StockNewsInterval  time.Duration `yaml:"stock_news_interval"`
	PolicyNewsInterval time.Duration `yaml:"policy_news_interval"`
	DailyKlineAt       string        `yaml:"daily_kline_at"`
	MarginAt           string        `yaml:"margin_at"`
	EarningsAt         string        `yaml:"earnings_at"`
	DailyKlineDays     int           `yaml:"daily_kline_days"`
	PolicyNewsDays     int           `yaml:"policy_news_days"`
	MaxConcurrent      int           `yaml:"max_concurrent"`
	WarmUp             []string      `yaml:"warm_up"`
}

// ProviderConfig configures the upstream market data HTTP API
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerSec int           `yaml:"requests_per_sec"`
	MaxRetries     int           `yaml:"max_retries"`
	Concurrency    int           `yaml:"concurrency"`
}

// DatabaseConfig selects and configures the relational store
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"-"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"ssl_mode"`
}

// Config is the full service configuration. It is loaded once at startup
// and passed by value afterwards.
type Config struct {
	Port              string         `yaml:"port"`
	Environment       string         `yaml:"environment"`
	LogLevel          string         `yaml:"log_level"`
	ShutdownTimeout   time.Duration  `yaml:"shutdown_timeout"`
	JWTSecret         string         `yaml:"-"`
	AdminUsername     string         `yaml:"admin_username"`
	AdminPasswordHash string         `yaml:"-"`
	MongoURI          string         `yaml:"-"`
	MongoDatabase     string         `yaml:"mongo_database"`
	Database          DatabaseConfig `yaml:"database"`
	Provider          ProviderConfig `yaml:"provider"`
	Market            MarketConfig   `yaml:"market"`
	Jobs              JobsConfig     `yaml:"jobs"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Port:            "8080",
		Environment:     "development",
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
		AdminUsername:   "admin",
		MongoDatabase:   "budvest",
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			SQLitePath: "data/investbuddy.db",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "budvest",
			SSLMode:    "disable",
		},
		Provider: ProviderConfig{
			BaseURL:        "http://127.0.0.1:8080",
			Timeout:        30 * time.Second,
			RequestsPerSec: 5,
			MaxRetries:     3,
			Concurrency:    4,
		},
		Market: MarketConfig{
			Timezone: "Asia/Shanghai",
			TradingHours: TradingHours{
				MorningStart:   "09:30",
				MorningEnd:     "11:30",
				AfternoonStart: "13:00",
				AfternoonEnd:   "15:00",
			},
			DefaultStocks: []string{"000001", "600519", "000858", "300750", "601318"},
			IndexList:     []string{"000001", "399001", "399006", "000300", "000016", "000905"},
		},
		Jobs: JobsConfig{
			RealtimeInterval:   5 * time.Minute,
			IndexInterval:      5 * time.Minute,
			FundFlowInterval:   10 * time.Minute,
			StockNewsInterval:  time.Hour,
			PolicyNewsInterval: 2 * time.Hour,
			DailyKlineAt:       "16:30",
			MarginAt:           "17:00",
			EarningsAt:         "09:00",
			DailyKlineDays:     5,
			PolicyNewsDays:     1,
			MaxConcurrent:      4,
			WarmUp: []string{
				"realtime_quotes",
				"index_quotes",
				"daily_kline",
				"stock_news",
				"policy_news",
				"fund_flow",
			},
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file
// (CONFIG_FILE) and environment variables, in that order.
func LoadConfig() (Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.AdminUsername = getEnv("ADMIN_USERNAME", c.AdminUsername)
	c.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.AdminPasswordHash)
	c.MongoURI = getEnv("MONGODB_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGODB_DATABASE", c.MongoDatabase)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Provider.BaseURL = getEnv("PROVIDER_BASE_URL", c.Provider.BaseURL)
	c.Provider.Timeout = getEnvDuration("PROVIDER_TIMEOUT", c.Provider.Timeout)
	c.Provider.RequestsPerSec = getEnvInt("PROVIDER_RPS", c.Provider.RequestsPerSec)
	c.Provider.MaxRetries = getEnvInt("PROVIDER_MAX_RETRIES", c.Provider.MaxRetries)
	c.Provider.Concurrency = getEnvInt("PROVIDER_CONCURRENCY", c.Provider.Concurrency)

	c.Market.Timezone = getEnv("MARKET_TIMEZONE", c.Market.Timezone)
	c.Market.TradingHours.MorningStart = getEnv("MORNING_START", c.Market.TradingHours.MorningStart)
	c.Market.TradingHours.MorningEnd = getEnv("MORNING_END", c.Market.TradingHours.MorningEnd)
	c.Market.TradingHours.AfternoonStart = getEnv("AFTERNOON_START", c.Market.TradingHours.AfternoonStart)
	c.Market.TradingHours.AfternoonEnd = getEnv("AFTERNOON_END", c.Market.TradingHours.AfternoonEnd)
	c.Market.DefaultStocks = getEnvList("DEFAULT_STOCKS", c.Market.DefaultStocks)
	c.Market.IndexList = getEnvList("INDEX_LIST", c.Market.IndexList)

	c.Jobs.RealtimeInterval = getEnvDuration("REALTIME_INTERVAL", c.Jobs.RealtimeInterval)
	c.Jobs.IndexInterval = getEnvDuration("INDEX_INTERVAL", c.Jobs.IndexInterval)
	c.Jobs.FundFlowInterval = getEnvDuration("FUND_FLOW_INTERVAL", c.Jobs.FundFlowInterval)
	c.Jobs.StockNewsInterval = getEnvDuration("STOCK_NEWS_INTERVAL", c.Jobs.StockNewsInterval)
	c.Jobs.PolicyNewsInterval = getEnvDuration("POLICY_NEWS_INTERVAL", c.Jobs.PolicyNewsInterval)
	c.Jobs.DailyKlineAt = getEnv("DAILY_UPDATE_AT", c.Jobs.DailyKlineAt)
	c.Jobs.MarginAt = getEnv("MARGIN_UPDATE_AT", c.Jobs.MarginAt)
	c.Jobs.EarningsAt = getEnv("EARNINGS_UPDATE_AT", c.Jobs.EarningsAt)
	c.Jobs.DailyKlineDays = getEnvInt("DAILY_KLINE_DAYS", c.Jobs.DailyKlineDays)
	c.Jobs.PolicyNewsDays = getEnvInt("POLICY_NEWS_DAYS", c.Jobs.PolicyNewsDays)
	c.Jobs.MaxConcurrent = getEnvInt("SCHEDULER_MAX_CONCURRENT", c.Jobs.MaxConcurrent)
	c.Jobs.WarmUp = getEnvList("WARM_UP_JOBS", c.Jobs.WarmUp)
}

// Validate checks values that cannot be defaulted
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	th := c.Market.TradingHours
	for name, v := range map[string]string{
		"morning_start":   th.MorningStart,
		"morning_end":     th.MorningEnd,
		"afternoon_start": th.AfternoonStart,
		"afternoon_end":   th.AfternoonEnd,
		"daily_kline_at":  c.Jobs.DailyKlineAt,
		"margin_at":       c.Jobs.MarginAt,
		"earnings_at":     c.Jobs.EarningsAt,
	} {
		if _, _, err := ParseClock(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for name, d := range map[string]time.Duration{
		"realtime_interval":    c.Jobs.RealtimeInterval,
		"index_interval":       c.Jobs.IndexInterval,
		"fund_flow_interval":   c.Jobs.FundFlowInterval,
		"stock_news_interval":  c.Jobs.StockNewsInterval,
		"policy_news_interval": c.Jobs.PolicyNewsInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.Jobs.MaxConcurrent)
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base_url is required")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location returns the exchange time zone. Hosts without tzdata fall back
// to a fixed UTC+8 zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		logrus.Warnf("Unknown timezone %q, falling back to UTC+8: %v", c.Market.Timezone, err)
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// ParseClock parses "HH:MM" into hour and minute
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM value %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// InitDB opens the configured store and verifies the connection
func InitDB(cfg Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case DriverPostgres:
		logrus.Infof("Connecting to database: host=%s port=%s user=%s dbname=%s",
			maskHost(cfg.Database.Host), cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			cfg.Database.Host,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.Port,
			cfg.Database.SSLMode,
			cfg.Market.Timezone,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		logrus.Infof("Opening sqlite store at %s", cfg.Database.SQLitePath)
		dsn := "file:" + cfg.Database.SQLitePath + "?_busy_timeout=5000&_journal_mode=WAL"
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if cfg.Database.Driver == DriverSQLite {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("Database connection verified successfully")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("Ignoring %s=%q: %v", key, value, err)
		return defaultValue
	}
	return d
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
