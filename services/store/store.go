// Package store persists market records keyed by their natural key.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"budvest_data_service/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Policy decides what happens when a record's natural key already exists
type Policy int

const (
	// ReplaceLatest overwrites every non-key column on conflict
	ReplaceLatest Policy = iota + 1
	// AppendOnce keeps the stored row and drops the new one on conflict
	AppendOnce
)

func (p Policy) String() string {
	switch p {
	case ReplaceLatest:
		return "replace-latest"
	case AppendOnce:
		return "append-once"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ErrInvalidPolicy is returned for an unknown Policy value
var ErrInvalidPolicy = errors.New("invalid update policy")

// Store writes records with conflict-aware statements, one statement per
// record. When the engine has no row-level concurrency control (sqlite),
// writes to the same table are serialized.
type Store struct {
	db        *gorm.DB
	serialize bool

	mu         sync.Mutex
	tableLocks map[string]*sync.Mutex
	updateCols map[string][]string
}

// New creates a store on top of an opened gorm connection
func New(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		serialize:  db.Dialector.Name() == "sqlite",
		tableLocks: make(map[string]*sync.Mutex),
		updateCols: make(map[string][]string),
	}
}

// DB exposes the underlying connection for read-side helpers
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Persist applies records under policy and returns how many rows were
// inserted or updated. The batch is not transactional: on failure the count
// of records already applied is returned together with the error.
func (s *Store) Persist(ctx context.Context, records []models.Record, policy Policy) (int, error) {
	if policy != ReplaceLatest && policy != AppendOnce {
		return 0, ErrInvalidPolicy
	}

	applied := 0
	for _, rec := range records {
		if isNil(rec) || !rec.HasKey() {
			logrus.WithField("table", tableOf(rec)).Warn("Skipping record without natural key")
			continue
		}
		n, err := s.apply(ctx, rec, policy)
		if err != nil {
			return applied, fmt.Errorf("persist %s: %w", rec.TableName(), err)
		}
		applied += n
	}
	return applied, nil
}

func (s *Store) apply(ctx context.Context, rec models.Record, policy Policy) (int, error) {
	table := rec.TableName()
	keys := rec.NaturalKey()

	conflict := clause.OnConflict{Columns: make([]clause.Column, 0, len(keys))}
	for _, k := range keys {
		conflict.Columns = append(conflict.Columns, clause.Column{Name: k})
	}

	if policy == AppendOnce {
		conflict.DoNothing = true
	} else {
		cols, err := s.nonKeyColumns(rec)
		if err != nil {
			return 0, err
		}
		conflict.DoUpdates = clause.AssignmentColumns(cols)
	}

	if s.serialize {
		lock := s.tableLock(table)
		lock.Lock()
		defer lock.Unlock()
	}

	result := s.db.WithContext(ctx).Clauses(conflict).Create(rec)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (s *Store) tableLock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.tableLocks[table]
	if !ok {
		lock = &sync.Mutex{}
		s.tableLocks[table] = lock
	}
	return lock
}

// nonKeyColumns lists the columns overwritten on conflict: everything except
// the primary key, the natural key and created_at.
func (s *Store) nonKeyColumns(rec models.Record) ([]string, error) {
	table := rec.TableName()

	s.mu.Lock()
	cols, ok := s.updateCols[table]
	s.mu.Unlock()
	if ok {
		return cols, nil
	}

	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(rec); err != nil {
		return nil, fmt.Errorf("parse schema of %s: %w", table, err)
	}

	skip := map[string]bool{"created_at": true}
	for _, k := range rec.NaturalKey() {
		skip[k] = true
	}
	for _, f := range stmt.Schema.PrimaryFields {
		skip[f.DBName] = true
	}
	for _, name := range stmt.Schema.DBNames {
		if !skip[name] {
			cols = append(cols, name)
		}
	}

	s.mu.Lock()
	s.updateCols[table] = cols
	s.mu.Unlock()
	return cols, nil
}

// isNil also catches typed nil pointers held in the interface
func isNil(rec models.Record) bool {
	if rec == nil {
		return true
	}
	v := reflect.ValueOf(rec)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func tableOf(rec models.Record) string {
	if isNil(rec) {
		return ""
	}
	return rec.TableName()
}
