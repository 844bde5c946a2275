package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using pgxpool. Table and column names are
// validated against the resource registry before reaching this layer; values
// are always bound as parameters.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &PostgresStore{pool: pool}
}

// Select reads all rows matching the equality filters.
func (s *PostgresStore) Select(ctx context.Context, res Resource, filters map[string]any) ([]Row, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`SELECT * FROM %s%s ORDER BY id ASC`, res.Table, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", res.Table, err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collecting rows from %s: %w", res.Table, err)
	}

	out := make([]Row, 0, len(records))
	for _, rec := range records {
		out = append(out, Row(rec))
	}
	return out, nil
}

// Insert writes one row and returns it as stored.
func (s *PostgresStore) Insert(ctx context.Context, res Resource, row Row) (Row, error) {
	cols := sortedColumns(row)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		res.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", res.Table, err)
	}

	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collecting inserted row from %s: %w", res.Table, err)
	}
	return Row(rec), nil
}

// Update mutates rows matching the filters and returns the updated row.
// Zero matching rows yields ErrRowNotFound.
func (s *PostgresStore) Update(ctx context.Context, res Resource, filters map[string]any, changes Row) (Row, error) {
	cols := sortedColumns(changes)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, changes[col])
	}

	where, whereArgs := buildWhereFrom(filters, len(cols)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf(`UPDATE %s SET %s%s RETURNING *`,
		res.Table, strings.Join(sets, ", "), where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", res.Table, err)
	}

	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRowNotFound
		}
		return nil, fmt.Errorf("collecting updated row from %s: %w", res.Table, err)
	}
	return Row(rec), nil
}

// Delete removes rows matching the filters. Zero matching rows yields
// ErrRowNotFound.
func (s *PostgresStore) Delete(ctx context.Context, res Resource, filters map[string]any) error {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`DELETE FROM %s%s`, res.Table, where)

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", res.Table, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRowNotFound
	}

	return nil
}

func buildWhere(filters map[string]any) (string, []any) {
	return buildWhereFrom(filters, 1)
}

func buildWhereFrom(filters map[string]any, firstArg int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	cols := sortedColumns(filters)
	clauses := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		clauses[i] = fmt.Sprintf("%s = $%d", col, firstArg+i)
		args[i] = filters[col]
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func sortedColumns[V any](m map[string]V) []string {
	cols := make([]string, 0, len(m))
	for col := range m {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
