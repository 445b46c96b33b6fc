package cards

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectCardQ = `SELECT id, owner_id, create_day, day_seq, version, content, create_time, update_time FROM cards WHERE id = \$1 AND owner_id = \$2`
	updateCardQ = `UPDATE cards SET content = \$1, version = version \+ 1, update_time = \$2 WHERE id = \$3 AND owner_id = \$4 AND version = \$5 RETURNING`
	deleteCardQ = `DELETE FROM cards WHERE id = \$1 AND owner_id = \$2 RETURNING`
)

var (
	day     = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	created = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	later   = created.Add(time.Hour)
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

func cardRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "create_day", "day_seq", "version", "content", "create_time", "update_time"})
}

func TestCreate_Success(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO cards \(owner_id, create_day, day_seq, version, content, create_time, update_time\) VALUES \(\$1, \$2, \$3, 1, \$4, \$5, \$6\) RETURNING id`).
		WithArgs("u1", day, 2, "hello", created, created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	card, err := repo.Create(context.Background(), &models.Card{
		OwnerID: "u1", CreateDay: day, DaySeq: 2, Content: "hello", CreateTime: created, UpdateTime: created,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), card.ID)
	assert.Equal(t, int64(1), card.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NumberTaken(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO cards`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "cards_owner_number_key"})

	_, err := repo.Create(context.Background(), &models.Card{OwnerID: "u1", CreateDay: day, DaySeq: 1})
	assert.ErrorIs(t, err, common.ErrNumberTaken)
}

func TestCreate_OtherUniqueViolationIsNotNumberTaken(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO cards`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "cards_pkey"})

	_, err := repo.Create(context.Background(), &models.Card{OwnerID: "u1", CreateDay: day, DaySeq: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNumberTaken)
	assert.True(t, dbx.IsUniqueViolation(err))
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO cards`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Card{OwnerID: "u1"})
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(selectCardQ).WithArgs(int64(5), "u1").
			WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(3), "c", created, later))

		card, err := repo.Get(context.Background(), "u1", 5)
		require.NoError(t, err)
		assert.Equal(t, &models.Card{ID: 5, OwnerID: "u1", CreateDay: day, DaySeq: 1, Version: 3, Content: "c", CreateTime: created, UpdateTime: later}, card)
	})

	t.Run("other owner or missing", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(selectCardQ).WithArgs(int64(5), "u2").WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "u2", 5)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(selectCardQ).WillReturnError(errors.New("boom"))

		_, err := repo.Get(context.Background(), "u1", 5)
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestUpdate_Accepted(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(selectCardQ).WithArgs(int64(5), "u1").
		WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(1), "a", created, created))
	mock.ExpectQuery(updateCardQ).WithArgs("b", later, int64(5), "u1", int64(1)).
		WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(2), "b", created, later))

	card, err := repo.Update(context.Background(), "u1", 5, "b", 1, later)
	require.NoError(t, err)
	assert.Equal(t, int64(2), card.Version)
	assert.Equal(t, "b", card.Content)
	assert.Equal(t, later, card.UpdateTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Gate(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		content  string
		wantErr  error
	}{
		{name: "too new", expected: 5, content: "x", wantErr: common.ErrVersionTooNew},
		{name: "stale", expected: 1, content: "x", wantErr: common.ErrVersionStale},
		{name: "same content is a no-op", expected: 2, content: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newRepoWithMock(t)
			mock.ExpectQuery(selectCardQ).WithArgs(int64(5), "u1").
				WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(2), "b", created, created))

			card, err := repo.Update(context.Background(), "u1", 5, tt.content, tt.expected, later)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, card)
			assert.Equal(t, int64(2), card.Version)
			assert.Equal(t, "b", card.Content)
			assert.Equal(t, created, card.UpdateTime)
			// no UPDATE statement was issued
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(selectCardQ).WillReturnError(sql.ErrNoRows)

	card, err := repo.Update(context.Background(), "u1", 5, "b", 1, later)
	assert.Nil(t, card)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_LostRace(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(selectCardQ).
		WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(1), "a", created, created))
	mock.ExpectQuery(updateCardQ).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectCardQ).
		WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(2), "other", created, later))

	card, err := repo.Update(context.Background(), "u1", 5, "b", 1, later)
	assert.ErrorIs(t, err, common.ErrVersionStale)
	require.NotNil(t, card)
	assert.Equal(t, int64(2), card.Version)
	assert.Equal(t, "other", card.Content)
}

func TestUpdate_LostRaceToDelete(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(selectCardQ).
		WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(1), "a", created, created))
	mock.ExpectQuery(updateCardQ).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectCardQ).WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), "u1", 5, "b", 1, later)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	t.Run("returns last state", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(deleteCardQ).WithArgs(int64(5), "u1").
			WillReturnRows(cardRows().AddRow(int64(5), "u1", day, int64(1), int64(3), "c", created, later))

		card, err := repo.Delete(context.Background(), "u1", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(3), card.Version)
		assert.Equal(t, "c", card.Content)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(deleteCardQ).WithArgs(int64(5), "u2").WillReturnError(sql.ErrNoRows)

		_, err := repo.Delete(context.Background(), "u2", 5)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestList(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`FROM cards WHERE owner_id = \$1 AND id BETWEEN \$2 AND \$3 ORDER BY id`).
		WithArgs("u1", int64(2), int64(4)).
		WillReturnRows(cardRows().
			AddRow(int64(2), "u1", day, int64(1), int64(1), "a", created, created).
			AddRow(int64(4), "u1", day, int64(2), int64(7), "b", created, later))

	got, err := repo.List(context.Background(), "u1", 2, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(7), got[1].Version)
}

func TestListAll_Empty(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`FROM cards WHERE owner_id = \$1 ORDER BY id`).WithArgs("u1").WillReturnRows(cardRows())

	got, err := repo.ListAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestList_QueryError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)
	mock.ExpectQuery(`FROM cards`).WillReturnError(errors.New("boom"))

	_, err := repo.List(context.Background(), "u1", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select cards")
}

func TestNextDaySeq(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(day_seq\), 0\) \+ 1 FROM cards WHERE owner_id = \$1 AND create_day = \$2`).
		WithArgs("u1", day).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(4)))

	seq, err := repo.NextDaySeq(context.Background(), "u1", day)
	require.NoError(t, err)
	assert.Equal(t, 4, seq)
}
