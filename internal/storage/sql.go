package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Columns of the trip table, in insert order. Names match the table read by
// the route dashboard.
var tripColumns = []string{
	"route_name", "route_link", "state_name",
	"bus_name", "bus_type", "departing_time", "duration", "reaching_time",
	"star_rating", "price", "old_price", "total_seats", "window_seats",
	"scraped_at",
}

// SQLSink writes each batch inside one transaction.
type SQLSink struct {
	db      *sql.DB
	dialect string
	table   string
	insert  string
	count   atomic.Int64
	logger  *slog.Logger
}

// OpenSQLSink opens a MySQL or SQLite database and ensures the trip table exists.
func OpenSQLSink(ctx context.Context, dialect, dsn, table string, logger *slog.Logger) (*SQLSink, error) {
	if dialect != "mysql" && dialect != "sqlite" {
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", dialect, err)
	}
	if dialect == "mysql" {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)
	} else {
		// one writer avoids SQLITE_BUSY between workers
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s ping: %w", dialect, err)
	}

	s, err := NewSQLSink(db, dialect, table, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLSink wraps an open database.
func NewSQLSink(db *sql.DB, dialect, table string, logger *slog.Logger) (*SQLSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSink{
		db:      db,
		dialect: dialect,
		table:   table,
		insert:  insertStatement(table),
		logger:  logger.With("component", "sql_sink", "dialect", dialect),
	}, nil
}

func (s *SQLSink) Name() string { return s.dialect }

// EnsureSchema creates the trip table when it does not exist.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStatement(s.dialect, s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLSink) Persist(ctx context.Context, batch types.RouteBatch) error {
	if err := checkBatch(s.Name(), batch); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("begin: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		_ = tx.Rollback()
		return persistErr(s.Name(), batch, fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	for i, row := range batch.Rows() {
		if _, err := stmt.ExecContext(ctx, rowArgs(row)...); err != nil {
			_ = tx.Rollback()
			return persistErr(s.Name(), batch, fmt.Errorf("insert trip %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("commit: %w", err))
	}

	total := s.count.Add(int64(batch.Len()))
	s.logger.Debug("batch stored", "route", batch.Route.Name, "trips", batch.Len(), "total", total)
	return nil
}

func (s *SQLSink) Close() error {
	s.logger.Info("sql sink closing", "total_trips", s.count.Load())
	return s.db.Close()
}

func rowArgs(r types.Row) []any {
	return []any{
		r.Name, r.URL, r.RegionTag,
		r.CarrierName, r.TripType, r.DepartureTime, r.Duration, r.ArrivalTime,
		nullFloat(r.StarRating), nullFloat(r.Price), nullFloat(r.PreviousPrice),
		nullInt(r.TotalSeats), nullInt(r.WindowSeats),
		r.ScrapedAt,
	}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func insertStatement(table string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(tripColumns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(tripColumns, ", "), marks)
}

func createStatement(dialect, table string) string {
	if dialect == "sqlite" {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	route_name TEXT NOT NULL,
	route_link TEXT NOT NULL,
	state_name TEXT NOT NULL,
	bus_name TEXT NOT NULL,
	bus_type TEXT NOT NULL,
	departing_time TEXT NOT NULL,
	duration TEXT NOT NULL,
	reaching_time TEXT NOT NULL,
	star_rating REAL NULL,
	price REAL NULL,
	old_price REAL NULL,
	total_seats INTEGER NULL,
	window_seats INTEGER NULL,
	scraped_at TIMESTAMP NOT NULL
)`, table)
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	route_name VARCHAR(255) NOT NULL,
	route_link TEXT NOT NULL,
	state_name VARCHAR(100) NOT NULL,
	bus_name VARCHAR(255) NOT NULL,
	bus_type VARCHAR(255) NOT NULL,
	departing_time VARCHAR(32) NOT NULL,
	duration VARCHAR(32) NOT NULL,
	reaching_time VARCHAR(32) NOT NULL,
	star_rating FLOAT NULL,
	price DECIMAL(10,2) NULL,
	old_price DECIMAL(10,2) NULL,
	total_seats INT NULL,
	window_seats INT NULL,
	scraped_at DATETIME NOT NULL,
	INDEX idx_state_route (state_name, route_name)
) CHARACTER SET utf8mb4`, table)
}
