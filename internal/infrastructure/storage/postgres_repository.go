package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

const (
	tendersTable = "tenders"

	codeUndefinedColumn = "42703"
	codeUniqueViolation = "23505"
)

//go:embed schema.sql
var schemaSQL string

// Columns present in every schema revision.
var coreColumns = []string{
	"title", "description", "location", "budget", "deadline",
	"category", "source_url", "published_at",
}

// Columns added later; older databases may lack them.
var optionalColumns = []string{"budget_is_estimate", "requirements"}

// Querier is the part of *pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresRepository persists tenders into Postgres.
type PostgresRepository struct {
	db     Querier
	sql    sq.StatementBuilderType
	logger *slog.Logger
}

var (
	_ ports.TenderRepository = (*PostgresRepository)(nil)
	_ ports.TenderCatalog    = (*PostgresRepository)(nil)
	_ Querier                = (*pgxpool.Pool)(nil)
)

// NewPool opens a pgx pool sized by cfg.MaxConns.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	poolCfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresRepository wires a pool (or any Querier) implementation.
func NewPostgresRepository(db Querier, log *slog.Logger) *PostgresRepository {
	if log == nil {
		log = logging.Discard()
	}
	return &PostgresRepository{
		db:     db,
		sql:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: log,
	}
}

// Migrate creates the tenders table when it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks that the store answers.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ExistingSourceURLs returns the subset of urls already stored, using one query.
func (r *PostgresRepository) ExistingSourceURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	result := make(map[string]struct{}, len(urls))
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := r.sql.Select("source_url").
		From(tendersTable).
		Where(sq.Eq{"source_url": urls}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build existence query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query existing: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("%w: scan source_url: %w", domain.ErrStoreUnavailable, err)
		}
		result[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %w", domain.ErrStoreUnavailable, err)
	}

	return result, nil
}

// InsertTender stores a new record and returns its id.
// A database without the optional columns gets one retry with the legacy shape.
func (r *PostgresRepository) InsertTender(ctx context.Context, record domain.TenderRecord) (string, error) {
	id, err := r.insert(ctx, record, true)
	if err == nil {
		return id, nil
	}
	if !isMissingOptionalColumn(err) {
		return "", err
	}

	r.logger.Warn("optional tender columns missing, retrying with legacy shape",
		"source_url", record.SourceURL, "error", err)
	return r.insertLegacyShape(ctx, record)
}

func (r *PostgresRepository) insertLegacyShape(ctx context.Context, record domain.TenderRecord) (string, error) {
	return r.insert(ctx, record, false)
}

func (r *PostgresRepository) insert(ctx context.Context, record domain.TenderRecord, withOptional bool) (string, error) {
	columns := append([]string{}, coreColumns...)
	values := []any{
		record.Title,
		nullable(record.Description),
		nullable(record.Location),
		nullable(record.Budget),
		record.Deadline,
		nullable(record.Category),
		record.SourceURL,
		record.PublishedAt,
	}
	if withOptional {
		requirements := record.Requirements
		if requirements == nil {
			requirements = []string{}
		}
		columns = append(columns, optionalColumns...)
		values = append(values, record.BudgetIsEstimate, requirements)
	}

	query, args, err := r.sql.Insert(tendersTable).
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING id::text").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	var id string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", classify(err, "insert tender")
	}
	return id, nil
}

// ListTenders returns the newest records first.
func (r *PostgresRepository) ListTenders(ctx context.Context, limit int) ([]domain.TenderRecord, error) {
	records, err := r.list(ctx, limit, true)
	if err != nil && isMissingOptionalColumn(err) {
		r.logger.Warn("optional tender columns missing, listing legacy shape", "error", err)
		return r.list(ctx, limit, false)
	}
	return records, err
}

func (r *PostgresRepository) list(ctx context.Context, limit int, withOptional bool) ([]domain.TenderRecord, error) {
	columns := append([]string{"id::text"}, coreColumns...)
	if withOptional {
		columns = append(columns, optionalColumns...)
	}
	columns = append(columns, "created_at", "updated_at")

	builder := r.sql.Select(columns...).From(tendersTable).OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list tenders")
	}
	defer rows.Close()

	var records []domain.TenderRecord
	for rows.Next() {
		var rec domain.TenderRecord
		var description, location, budget, category *string
		var deadline, published *time.Time
		dest := []any{
			&rec.ID, &rec.Title, &description, &location, &budget, &deadline,
			&category, &rec.SourceURL, &published,
		}
		if withOptional {
			dest = append(dest, &rec.BudgetIsEstimate, &rec.Requirements)
		}
		dest = append(dest, &rec.CreatedAt, &rec.UpdatedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, classify(err, "scan tender")
		}
		rec.Description = deref(description)
		rec.Location = deref(location)
		rec.Budget = deref(budget)
		rec.Category = deref(category)
		rec.Deadline = deadline
		rec.PublishedAt = published
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "rows iteration")
	}

	return records, nil
}

// classify maps Postgres error codes onto domain errors.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedColumn:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrUnknownColumn, err)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isMissingOptionalColumn(err error) bool {
	if !errors.Is(err, domain.ErrUnknownColumn) {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, column := range optionalColumns {
		if strings.Contains(pgErr.Message, column) || pgErr.ColumnName == column {
			return true
		}
	}
	return false
}

func nullable(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
