package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

const cardColumns = `id, owner_id, create_day, day_seq, version, content, create_time, update_time`

// numberConstraint guards the per-owner, per-day display number.
const numberConstraint = "cards_owner_number_key"

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (*models.Card, error) {
	c := &models.Card{}
	err := s.Scan(&c.ID, &c.OwnerID, &c.CreateDay, &c.DaySeq, &c.Version, &c.Content, &c.CreateTime, &c.UpdateTime)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, card *models.Card) (*models.Card, error) {
	query := `
		INSERT INTO cards (owner_id, create_day, day_seq, version, content, create_time, update_time)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		card.OwnerID, card.CreateDay, card.DaySeq, card.Content, card.CreateTime, card.UpdateTime).Scan(&card.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) && dbx.ConstraintName(err) == numberConstraint {
			return nil, common.ErrNumberTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	card.Version = 1
	return card, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID string, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND owner_id = $2`

	card, err := scanCard(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return card, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ownerID string, id int64, content string, expected int64, at time.Time) (*models.Card, error) {
	current, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	switch {
	case expected > current.Version:
		return current, common.ErrVersionTooNew
	case expected < current.Version:
		return current, common.ErrVersionStale
	case content == current.Content:
		return current, nil
	}

	// The version predicate catches a writer that committed between the read
	// above and this statement.
	query := `
		UPDATE cards SET content = $1, version = version + 1, update_time = $2
		WHERE id = $3 AND owner_id = $4 AND version = $5
		RETURNING ` + cardColumns

	card, err := scanCard(r.db.QueryRowContext(ctx, query, content, at, id, ownerID, expected))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.lostRace(ctx, ownerID, id)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return card, nil
}

// lostRace reports a concurrent update as stale, or as not found when the
// competing writer deleted the card.
func (r *PostgresRepository) lostRace(ctx context.Context, ownerID string, id int64) (*models.Card, error) {
	current, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return current, common.ErrVersionStale
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID string, id int64) (*models.Card, error) {
	query := `DELETE FROM cards WHERE id = $1 AND owner_id = $2 RETURNING ` + cardColumns

	card, err := scanCard(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return card, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, firstID, lastID int64) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE owner_id = $1 AND id BETWEEN $2 AND $3 ORDER BY id`
	return r.query(ctx, query, ownerID, firstID, lastID)
}

func (r *PostgresRepository) ListAll(ctx context.Context, ownerID string) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE owner_id = $1 ORDER BY id`
	return r.query(ctx, query, ownerID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select cards: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) NextDaySeq(ctx context.Context, ownerID string, day time.Time) (int, error) {
	query := `SELECT COALESCE(MAX(day_seq), 0) + 1 FROM cards WHERE owner_id = $1 AND create_day = $2`

	var seq int
	if err := r.db.QueryRowContext(ctx, query, ownerID, day).Scan(&seq); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}
