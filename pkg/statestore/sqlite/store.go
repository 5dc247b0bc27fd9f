package sqlite

import (
	"codeberg.org/miketth/klmd/pkg/statestore/sqlite/migrations"
	"context"
	"database/sql"
	"errors"
	"fmt"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"time"
)

type StateStore struct {
	db      *sql.DB
	querier *Queries
}

func NewStateStore(filename string, log *zap.SugaredLogger) (*StateStore, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrations.Migrate(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &StateStore{
		db:      db,
		querier: New(db),
	}, nil
}

func (s *StateStore) Close() error {
	return s.db.Close()
}

func (s *StateStore) LoadState() ([]byte, error) {
	record, err := s.querier.GetState(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}

	if record == nil {
		record = []byte{}
	}
	return record, nil
}

func (s *StateStore) SaveState(record []byte) error {
	if err := s.querier.SetState(context.Background(), SetStateParams{
		Record:    record,
		UpdatedAt: time.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("sqlite upsert: %w", err)
	}

	return nil
}

func (s *StateStore) ClearState() error {
	if err := s.querier.DeleteState(context.Background()); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}

	return nil
}
