// Package collector implements the fetch, normalize and persist sequence of
// every market data kind.
//
// A Collector never returns fetch failures: an unreachable or misbehaving
// source is logged and counts as an empty result. The error return of
// Collect is reserved for the store.
package collector

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"budvest_data_service/models"
	"budvest_data_service/services/normalize"
	"budvest_data_service/services/provider"
	"budvest_data_service/services/store"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Collector fetches one data kind and persists it
type Collector interface {
	Name() string
	// Collect returns the number of persisted rows
	Collect(ctx context.Context, p Params) (int, error)
}

// Params overrides the defaults of one collection run. Zero values resolve
// to defaults.
type Params struct {
	Symbols    []string
	StartDate  string // YYYYMMDD
	EndDate    string // YYYYMMDD
	ReportDate string // YYYYMMDD fiscal period end
	Days       int
	// MarketWide selects the whole-market endpoint where one exists
	MarketWide bool
}

// Defaults are the configured universes collectors fall back to
type Defaults struct {
	Stocks  []string
	Indices []string
}

// Persister is the write side of the upsert store
type Persister interface {
	Persist(ctx context.Context, records []models.Record, policy store.Policy) (int, error)
}

// Deps are shared by all collectors
type Deps struct {
	Store    Persister
	Defaults Defaults
	// Now returns the current time in the exchange time zone
	Now func() time.Time
	// Concurrency bounds parallel fetches within one run
	Concurrency int
}

const (
	defaultKlineDays      = 60
	defaultPolicyNewsDays = 3
	newsProxySymbol       = "000001"
	newsProxyLimit        = 20
)

type base struct {
	name        string
	store       Persister
	defaults    Defaults
	now         func() time.Time
	concurrency int
	log         *logrus.Entry
}

func newBase(name string, deps Deps) base {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return base{
		name:        name,
		store:       deps.Store,
		defaults:    deps.Defaults,
		now:         now,
		concurrency: concurrency,
		log:         logrus.WithField("collector", name),
	}
}

func (b *base) Name() string { return b.name }

type unit struct {
	req  provider.Request
	rows []normalize.Row
}

// fetchAll runs fetch once per request with bounded parallelism. Results keep
// request order; failed or empty units carry no rows.
func (b *base) fetchAll(ctx context.Context, fetch provider.FetchFunc, reqs []provider.Request) []unit {
	units := make([]unit, len(reqs))
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			units[i] = unit{req: req, rows: b.fetchOne(ctx, fetch, req)}
			return nil
		})
	}
	_ = g.Wait()
	return units
}

func (b *base) fetchOne(ctx context.Context, fetch provider.FetchFunc, req provider.Request) []normalize.Row {
	res := safeFetch(ctx, fetch, req)
	log := b.log.WithFields(requestFields(req))
	switch res.Status {
	case provider.StatusOK:
		log.WithField("rows", len(res.Rows)).Debug("Fetched rows")
		return res.Rows
	case provider.StatusEmpty:
		log.Info("No data returned")
	default:
		log.WithError(res.Err).Warn("Fetch failed, treating as empty")
	}
	return nil
}

// safeFetch converts a panicking fetch into a failed result
func safeFetch(ctx context.Context, fetch provider.FetchFunc, req provider.Request) (res provider.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = provider.Failed(fmt.Errorf("fetch panicked: %v\n%s", r, debug.Stack()))
		}
	}()
	if fetch == nil {
		return provider.Failed(fmt.Errorf("no fetch function configured"))
	}
	return fetch(ctx, req)
}

// persist drops records without a natural key and writes the rest in one
// store call.
func (b *base) persist(ctx context.Context, records []models.Record, policy store.Policy) (int, error) {
	kept := make([]models.Record, 0, len(records))
	for _, r := range records {
		if r.HasKey() {
			kept = append(kept, r)
		}
	}
	if dropped := len(records) - len(kept); dropped > 0 {
		b.log.WithField("dropped", dropped).Warn("Discarded rows without natural key")
	}
	if len(kept) == 0 {
		b.log.Info("Nothing to persist")
		return 0, nil
	}

	n, err := b.store.Persist(ctx, kept, policy)
	if err != nil {
		return n, fmt.Errorf("%s: %w", b.name, err)
	}
	b.log.WithFields(logrus.Fields{"count": n, "policy": policy}).Info("Persisted records")
	return n, nil
}

func (b *base) stocks(p Params) []string {
	if len(p.Symbols) > 0 {
		return p.Symbols
	}
	return b.defaults.Stocks
}

func (b *base) today() string {
	return b.now().Format("2006-01-02")
}

func requestFields(req provider.Request) logrus.Fields {
	fields := logrus.Fields{}
	if req.Symbol != "" {
		fields["symbol"] = req.Symbol
	}
	if req.Market != "" {
		fields["market"] = req.Market
	}
	if req.Date != "" {
		fields["date"] = req.Date
	}
	if req.StartDate != "" {
		fields["start_date"] = req.StartDate
		fields["end_date"] = req.EndDate
	}
	return fields
}

// Exchange routes a symbol to "sh" or "sz" by its board digit
func Exchange(symbol string) string {
	switch {
	case strings.HasPrefix(symbol, "6"),
		strings.HasPrefix(symbol, "5"),
		strings.HasPrefix(symbol, "9"):
		return "sh"
	default:
		return "sz"
	}
}

// FiscalQuarterEnd returns the most recent completed fiscal quarter end
// before now as YYYYMMDD.
func FiscalQuarterEnd(now time.Time) string {
	year := now.Year()
	switch month := now.Month(); {
	case month <= time.March:
		return fmt.Sprintf("%d1231", year-1)
	case month <= time.June:
		return fmt.Sprintf("%d0331", year)
	case month <= time.September:
		return fmt.Sprintf("%d0630", year)
	default:
		return fmt.Sprintf("%d0930", year)
	}
}

func symbolSet(symbols []string) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[strings.TrimSpace(s)] = true
	}
	return set
}
