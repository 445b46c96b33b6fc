package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/client/models"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
// Times are stored as RFC 3339 text in UTC.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.Card) error {
	query := `INSERT INTO cards (id, number, version, content, create_time, update_time)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET number = excluded.number,
				version = excluded.version,
				content = excluded.content,
				create_time = excluded.create_time,
				update_time = excluded.update_time`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Number, c.Version, c.Content, formatTime(c.CreateTime), formatTime(c.UpdateTime))
	if err != nil {
		return fmt.Errorf("failed to upsert card %d: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT id, number, version, content, create_time, update_time FROM cards WHERE id = ?`
	c, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Card, error) {
	query := `SELECT id, number, version, content, create_time, update_time FROM cards ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select cards: %w", err)
	}
	defer rows.Close()

	var result []*models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (*models.Card, error) {
	var (
		c                models.Card
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.Number, &c.Version, &c.Content, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if c.CreateTime, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, err
	}
	if c.UpdateTime, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
