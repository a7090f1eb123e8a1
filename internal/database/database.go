package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Martin-Hayot/auctionhub/configs"
	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	// AUCTION METHODS
	CreateAuction(ctx context.Context, auction types.NewAuction) (types.Auction, error)
	GetAuctionByID(ctx context.Context, id int64) (types.Auction, error)
	ListAuctions(ctx context.Context) ([]types.Auction, error)
	ListActiveAuctions(ctx context.Context, now time.Time) ([]types.Auction, error)
	CountActiveAuctions(ctx context.Context, now time.Time) (int64, error)
	DeleteAuction(ctx context.Context, id int64) error
	DeleteExpiredAuctions(ctx context.Context, now time.Time) (int64, error)
	ClearAuctions(ctx context.Context) (int64, error)

	// JOB LOG METHODS
	InsertJobLog(ctx context.Context, jobName string, status types.JobStatus, message string) (types.JobLog, error)
	ListJobLogs(ctx context.Context, limit int) ([]types.JobLog, error)
}

const auctionColumns = `id, title, description, starting_price, bids_count, end_time, created_at`

const jobLogColumns = `id, job_name, status, message, executed_at`

type service struct {
	db *sql.DB
}

// DSN builds the pgx connection string for the configured database.
func DSN(cfg *configs.Config) string {
	dbConfig := cfg.Database
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.Name,
		dbConfig.SSLMode,
	)
}

// New opens the store selected by cfg.Database.Driver ("postgres" or "memory").
func New(cfg *configs.Config) (Service, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory store, data is lost on exit")
		return NewMemory(), nil
	}

	db, err := sql.Open("pgx", DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing pool.
func NewWithDB(db *sql.DB) Service {
	return &service{db: db}
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	// Ping the database
	err := s.db.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error("db down", "error", err)
		return stats
	}

	// Database is up, add more statistics
	stats["status"] = "up"
	stats["message"] = "It's healthy"

	// Get database stats (like open connections, in use, idle, etc.)
	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Info("Disconnected from database")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (types.Auction, error) {
	var auction types.Auction
	err := row.Scan(
		&auction.ID,
		&auction.Title,
		&auction.Description,
		&auction.StartingPrice,
		&auction.BidsCount,
		&auction.EndTime,
		&auction.CreatedAt,
	)
	return auction, err
}

func scanJobLog(row rowScanner) (types.JobLog, error) {
	var entry types.JobLog
	err := row.Scan(
		&entry.ID,
		&entry.JobName,
		&entry.Status,
		&entry.Message,
		&entry.ExecutedAt,
	)
	return entry, err
}

// roundPrice keeps prices at the two decimals NUMERIC(10,2) stores.
func roundPrice(price float64) float64 {
	return math.Round(price*100) / 100
}

func (s *service) CreateAuction(ctx context.Context, auction types.NewAuction) (types.Auction, error) {
	query := `INSERT INTO auctions (title, description, starting_price, end_time) VALUES ($1, $2, $3, $4) RETURNING ` + auctionColumns
	created, err := scanAuction(s.db.QueryRowContext(ctx, query,
		auction.Title,
		auction.Description,
		roundPrice(auction.StartingPrice),
		auction.EndTime,
	))
	if err != nil {
		return types.Auction{}, errors.Wrap(err, "error creating auction")
	}

	log.Debug("Auction created", "id", created.ID, "title", created.Title)
	return created, nil
}

func (s *service) GetAuctionByID(ctx context.Context, id int64) (types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return types.Auction{}, errors.New(errors.ErrAuctionNotFound, "auction not found")
	}
	if err != nil {
		return types.Auction{}, fmt.Errorf("error getting auction by id: %w", err)
	}
	return auction, nil
}

func (s *service) ListAuctions(ctx context.Context) ([]types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at DESC, id DESC`
	return s.queryAuctions(ctx, query)
}

// ListActiveAuctions returns auctions ending after now, ending soonest first.
func (s *service) ListActiveAuctions(ctx context.Context, now time.Time) ([]types.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE end_time > $1 ORDER BY end_time ASC, id ASC`
	return s.queryAuctions(ctx, query, now)
}

func (s *service) queryAuctions(ctx context.Context, query string, args ...any) ([]types.Auction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing auctions: %w", err)
	}
	defer rows.Close()

	auctions := make([]types.Auction, 0)
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning auction: %w", err)
		}
		auctions = append(auctions, auction)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over auctions: %w", err)
	}

	return auctions, nil
}

func (s *service) CountActiveAuctions(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions WHERE end_time > $1`, now).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error counting active auctions: %w", err)
	}
	return total, nil
}

func (s *service) DeleteAuction(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting auction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting auction: %w", err)
	}
	if affected == 0 {
		return errors.New(errors.ErrAuctionNotFound, "auction not found")
	}
	return nil
}

// DeleteExpiredAuctions removes every auction whose end time is strictly before now.
func (s *service) DeleteExpiredAuctions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auctions WHERE end_time < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired auctions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error deleting expired auctions: %w", err)
	}
	return deleted, nil
}

func (s *service) ClearAuctions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auctions`)
	if err != nil {
		return 0, fmt.Errorf("error clearing auctions: %w", err)
	}
	return result.RowsAffected()
}

func (s *service) InsertJobLog(ctx context.Context, jobName string, status types.JobStatus, message string) (types.JobLog, error) {
	query := `INSERT INTO job_log (job_name, status, message) VALUES ($1, $2, $3) RETURNING ` + jobLogColumns
	entry, err := scanJobLog(s.db.QueryRowContext(ctx, query, jobName, string(status), message))
	if err != nil {
		return types.JobLog{}, fmt.Errorf("error inserting job log: %w", err)
	}
	return entry, nil
}

// ListJobLogs returns the most recent entries first.
func (s *service) ListJobLogs(ctx context.Context, limit int) ([]types.JobLog, error) {
	query := `SELECT ` + jobLogColumns + ` FROM job_log ORDER BY executed_at DESC, id DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing job logs: %w", err)
	}
	defer rows.Close()

	entries := make([]types.JobLog, 0)
	for rows.Next() {
		entry, err := scanJobLog(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning job log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over job logs: %w", err)
	}

	return entries, nil
}
