package store

import (
	"context"

	"budvest_data_service/models"
)

const defaultLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultLimit
	}
	return limit
}

// LatestQuotes returns spot quotes, optionally restricted to symbols
func (s *Store) LatestQuotes(ctx context.Context, symbols []string, limit int) ([]models.StockRealtime, error) {
	var quotes []models.StockRealtime
	q := s.db.WithContext(ctx).Order("symbol ASC").Limit(clampLimit(limit))
	if len(symbols) > 0 {
		q = q.Where("symbol IN ?", symbols)
	}
	err := q.Find(&quotes).Error
	return quotes, err
}

// Indices returns index spot quotes, optionally restricted to symbols
func (s *Store) Indices(ctx context.Context, symbols []string) ([]models.IndexRealtime, error) {
	var indices []models.IndexRealtime
	q := s.db.WithContext(ctx).Order("symbol ASC")
	if len(symbols) > 0 {
		q = q.Where("symbol IN ?", symbols)
	}
	err := q.Find(&indices).Error
	return indices, err
}

// DailyKlines returns the most recent bars of symbol, newest first
func (s *Store) DailyKlines(ctx context.Context, symbol string, limit int) ([]models.StockDaily, error) {
	var bars []models.StockDaily
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("trade_date DESC").
		Limit(clampLimit(limit)).
		Find(&bars).Error
	return bars, err
}

// StockNews returns recent news, optionally for one symbol
func (s *Store) StockNews(ctx context.Context, symbol string, limit int) ([]models.StockNews, error) {
	var news []models.StockNews
	q := s.db.WithContext(ctx).Order("publish_time DESC").Limit(clampLimit(limit))
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	err := q.Find(&news).Error
	return news, err
}

// PolicyNews returns recent policy news, optionally for one category
func (s *Store) PolicyNews(ctx context.Context, category string, limit int) ([]models.PolicyNews, error) {
	var news []models.PolicyNews
	q := s.db.WithContext(ctx).Order("publish_time DESC").Limit(clampLimit(limit))
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Find(&news).Error
	return news, err
}

// FundFlow returns the fund flow history of symbol, newest first
func (s *Store) FundFlow(ctx context.Context, symbol string, limit int) ([]models.FundFlow, error) {
	var flows []models.FundFlow
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("trade_date DESC").
		Limit(clampLimit(limit)).
		Find(&flows).Error
	return flows, err
}

// Margin returns the margin trading history of symbol, newest first
func (s *Store) Margin(ctx context.Context, symbol string, limit int) ([]models.MarginTrading, error) {
	var rows []models.MarginTrading
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("trade_date DESC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// Earnings returns announcements, optionally for one report period
func (s *Store) Earnings(ctx context.Context, reportDate string, limit int) ([]models.EarningsCalendar, error) {
	var rows []models.EarningsCalendar
	q := s.db.WithContext(ctx).Order("actual_date DESC").Limit(clampLimit(limit))
	if reportDate != "" {
		q = q.Where("report_date = ?", reportDate)
	}
	err := q.Find(&rows).Error
	return rows, err
}
