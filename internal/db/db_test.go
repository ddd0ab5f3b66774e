package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"legal-rag/internal/config"
	"legal-rag/internal/models"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "queries.db")}
	sqldb, err := ConnectDB(cfg)
	require.NoError(t, err)
	db := NewDB(sqldb, cfg.Driver, false)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, InitDB(context.Background(), db))
	return db
}

func TestStoreAndGetQuery(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	entry := &QueryLog{
		QueryType: models.QueryTypeLegalQA,
		Question:  "What is the punishment for bribery?",
		Answer:    "Three to seven years.",
		Sources:   []string{"legal-qa-p1-c3", "legal-qa-p1-c1"},
	}
	require.NoError(t, StoreQuery(ctx, db, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := GetQuery(ctx, db, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Question, got.Question)
	assert.Equal(t, entry.Answer, got.Answer)
	assert.Equal(t, entry.Sources, got.Sources)

	_, err = GetQuery(ctx, db, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestListQueries_NewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, qt := range []string{models.QueryTypeLegalQA, models.QueryTypeInvestigation, models.QueryTypeLegalQA} {
		require.NoError(t, StoreQuery(ctx, db, &QueryLog{
			QueryType: qt,
			Question:  qt,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := ListQueries(ctx, db, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.True(t, all[1].CreatedAt.After(all[2].CreatedAt))

	legal, err := ListQueries(ctx, db, models.QueryTypeLegalQA, 0)
	require.NoError(t, err)
	require.Len(t, legal, 2)
	for _, q := range legal {
		assert.Equal(t, models.QueryTypeLegalQA, q.QueryType)
	}

	one, err := ListQueries(ctx, db, "", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, models.QueryTypeLegalQA, one[0].QueryType)
}

func TestConnectDB_Invalid(t *testing.T) {
	_, err := ConnectDB(&config.DatabaseConfig{Driver: "sqlite"})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = ConnectDB(&config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDropQueries_ResetsHistory(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, StoreQuery(ctx, db, &QueryLog{QueryType: models.QueryTypeAssistant, Question: "q"}))

	require.NoError(t, DropQueries(ctx, db))
	_, err := ListQueries(ctx, db, "", 0)
	require.Error(t, err)

	require.NoError(t, InitDB(ctx, db))
	all, err := ListQueries(ctx, db, "", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	disabled, err := Open(ctx, &config.DatabaseConfig{Driver: "sqlite"})
	require.NoError(t, err)
	assert.Nil(t, disabled)

	db, err := Open(ctx, &config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "q.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, StoreQuery(ctx, db, &QueryLog{QueryType: models.QueryTypeLegalQA, Question: "q"}))
}
