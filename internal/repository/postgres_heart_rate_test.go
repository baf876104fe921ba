package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-link/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresHeartRateRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresHeartRateRepository(db)
	return db, mock, repo
}

func TestInsert_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reading := domain.Reading{HeartRate: 72, Timestamp: ts}

	mock.ExpectQuery(`INSERT INTO heart_rate_data`).
		WithArgs(72, ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))

	record, err := repo.Insert(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, int64(41), record.ID)
	assert.Equal(t, 72, record.HeartRate)
	assert.Equal(t, ts, record.Timestamp)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_StoreUnavailable(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO heart_rate_data`).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Insert(context.Background(), domain.Reading{HeartRate: 72, Timestamp: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert heart rate reading")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRange_NewestFirst(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	start := end.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"id", "heart_rate", "timestamp"}).
		AddRow(int64(3), 80, end.Add(-time.Minute)).
		AddRow(int64(2), 75, end.Add(-2*time.Minute)).
		AddRow(int64(1), 70, end.Add(-3*time.Minute))

	mock.ExpectQuery(`SELECT id, heart_rate, timestamp`).
		WithArgs(start, end, 100).
		WillReturnRows(rows)

	records, err := repo.QueryRange(context.Background(), domain.TimeRange{Start: start, End: end}, 100)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, 80, records[0].HeartRate)
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRange_Empty(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	end := time.Now()
	start := end.Add(-time.Hour)

	mock.ExpectQuery(`SELECT id, heart_rate, timestamp`).
		WithArgs(start, end, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "heart_rate", "timestamp"}))

	records, err := repo.QueryRange(context.Background(), domain.TimeRange{Start: start, End: end}, 100)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Len(t, records, 0)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats_RoundsAverage(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	end := time.Now()
	start := end.Add(-time.Hour)

	// 平均值 82.5 四舍五入为 83
	rows := sqlmock.NewRows([]string{"min", "max", "avg", "count"}).
		AddRow(70, 95, 82.5, 4)

	mock.ExpectQuery(`SELECT`).
		WithArgs(start, end).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), domain.TimeRange{Start: start, End: end})
	require.NoError(t, err)
	assert.Equal(t, domain.HeartRateStats{Min: 70, Max: 95, Average: 83, Count: 4}, stats)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats_EmptyRangeIsAllZero(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	end := time.Now()
	start := end.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"min", "max", "avg", "count"}).
		AddRow(0, 0, 0.0, 0)

	mock.ExpectQuery(`SELECT`).
		WithArgs(start, end).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), domain.TimeRange{Start: start, End: end})
	require.NoError(t, err)
	assert.Equal(t, domain.HeartRateStats{}, stats)

	assert.NoError(t, mock.ExpectationsWereMet())
}
