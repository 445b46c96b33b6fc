package changelog

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

// appendLockKey is the pg_advisory_xact_lock key serializing ledger appends.
// Holding it from position allocation until commit makes positions become
// visible in ascending order, so a reader that sees position N has also seen
// every committed position below N.
const appendLockKey int64 = 0x636172646c6f67

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.ChangeLogEntry) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	query := `
		INSERT INTO changelog (owner_id, card_id, version, content, update_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, e.OwnerID, e.CardID, e.Version, e.Content, e.UpdateTime).Scan(&e.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return 0, common.ErrVersionStale
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return e.ID, nil
}

func (r *PostgresRepository) ChangesSince(ctx context.Context, ownerID string, cursor, head int64) ([]models.Change, error) {
	query := `
		SELECT id, card_id, version, update_time FROM changelog
		WHERE owner_id = $1 AND id > $2 AND id <= $3
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, cursor, head)
	if err != nil {
		return nil, fmt.Errorf("failed to select changes: %w", err)
	}
	defer rows.Close()

	var entries []models.ChangeLogEntry
	for rows.Next() {
		e := models.ChangeLogEntry{OwnerID: ownerID}
		if err := rows.Scan(&e.ID, &e.CardID, &e.Version, &e.UpdateTime); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.Coalesce(entries), nil
}

func (r *PostgresRepository) MaxPosition(ctx context.Context) (int64, error) {
	var pos int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM changelog`).Scan(&pos); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return pos, nil
}

func (r *PostgresRepository) History(ctx context.Context, ownerID string, cardID int64) ([]models.ChangeLogEntry, error) {
	query := `
		SELECT id, owner_id, card_id, version, content, update_time FROM changelog
		WHERE owner_id = $1 AND card_id = $2
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	defer rows.Close()

	result := make([]models.ChangeLogEntry, 0)
	for rows.Next() {
		var e models.ChangeLogEntry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.CardID, &e.Version, &e.Content, &e.UpdateTime); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
