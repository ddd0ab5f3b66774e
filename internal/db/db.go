package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"legal-rag/internal/config"
	"legal-rag/internal/helper"
	"legal-rag/internal/models"
)

const defaultListLimit = 20

// QueryLog records one answered question.
type QueryLog struct {
	bun.BaseModel `bun:"table:query_logs,alias:q"`
	ID            string    `bun:"id,pk" json:"id"`
	QueryType     string    `bun:"query_type,notnull" json:"query_type"`
	Question      string    `bun:"question,notnull" json:"question"`
	Answer        string    `bun:"answer" json:"answer"`
	Sources       []string  `bun:"sources,type:jsonb" json:"sources,omitempty"`
	Error         string    `bun:"error" json:"error,omitempty"`
	DurationMs    int64     `bun:"duration_ms" json:"duration_ms"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

func isPostgres(driver string) bool {
	switch strings.ToLower(driver) {
	case "pg", "postgres":
		return true
	}
	return false
}

// ConnectDB opens the SQL connection named by dbConfig.Driver: sqlite
// (pure Go), pg (bun's pgdriver) or postgres (lib/pq).
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.DSN == "" {
		return nil, fmt.Errorf("%w: database dsn is empty", models.ErrInvalidInput)
	}
	switch strings.ToLower(dbConfig.Driver) {
	case "sqlite", "":
		sqldb, err := sql.Open("sqlite", dbConfig.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		// sqlite allows a single writer
		sqldb.SetMaxOpenConns(1)
		return sqldb, nil
	case "pg":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dbConfig.DSN))), nil
	case "postgres":
		return sql.Open("postgres", dbConfig.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", models.ErrInvalidInput, dbConfig.Driver)
	}
}

func NewDB(sqldb *sql.DB, driver string, debug bool) *bun.DB {
	var db *bun.DB
	if isPostgres(driver) {
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Open connects and initializes the query log described by dbConfig. It
// returns nil without error when the DSN is empty, which disables history.
func Open(ctx context.Context, dbConfig *config.DatabaseConfig) (*bun.DB, error) {
	if dbConfig.DSN == "" {
		return nil, nil
	}
	sqldb, err := ConnectDB(dbConfig)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, dbConfig.Driver, dbConfig.Debug)
	if err := InitDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize query log: %w", err)
	}
	return db, nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*QueryLog)(nil)).IfNotExists().Exec(ctx)
	return err
}

// StoreQuery inserts entry, filling ID and CreatedAt when unset.
func StoreQuery(ctx context.Context, db *bun.DB, entry *QueryLog) error {
	if entry.ID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		entry.ID = id
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.NewInsert().Model(entry).Exec(ctx)
	return err
}

// ListQueries returns the newest entries first, optionally filtered by
// query type. A non-positive limit means the default of 20.
func ListQueries(ctx context.Context, db *bun.DB, queryType string, limit int) ([]QueryLog, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	logs := make([]QueryLog, 0)
	q := db.NewSelect().
		Model(&logs).
		OrderExpr("created_at DESC").
		Limit(limit)
	if queryType != "" {
		q = q.Where("query_type = ?", queryType)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return logs, nil
}

func GetQuery(ctx context.Context, db *bun.DB, id string) (*QueryLog, error) {
	entry := new(QueryLog)
	err := db.NewSelect().Model(entry).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: query %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DropQueries removes the history table; InitDB recreates it.
func DropQueries(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*QueryLog)(nil)).IfExists().Exec(ctx)
	return err
}
