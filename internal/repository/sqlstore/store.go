// Package sqlstore implements the repository ports once for every SQL
// dialect. Queries are built with squirrel; each driver package supplies its
// placeholder format, insert-id strategy and error translation.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/repository/db"
)

// Dialect describes driver differences / Décrit les différences entre drivers
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	Returning   bool              // INSERT ... RETURNING id instead of LastInsertId
	HandleError func(error) error // Driver error to typed error / Erreur driver vers erreur typée
}

// store is embedded by every repository / Base commune des repositories
type store struct {
	db      ports.DBTX
	dialect Dialect
}

func newStore(dbtx ports.DBTX, d Dialect) store {
	return store{db: dbtx, dialect: d}
}

func (s store) qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.dialect.Placeholder)
}

func (s store) handle(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return db.ErrNoRecord
	}
	if s.dialect.HandleError != nil {
		return s.dialect.HandleError(err)
	}
	return err
}

// insert runs b and returns the generated id / Exécute l'insertion et retourne l'id
func (s store) insert(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	if s.dialect.Returning {
		query, args, err := b.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, s.handle(err)
		}
		return id, nil
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.handle(err)
	}
	id, err := res.LastInsertId()
	return id, s.handle(err)
}

// exec runs a write and returns affected rows / Exécute une écriture
func (s store) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.handle(err)
	}
	n, err := res.RowsAffected()
	return n, s.handle(err)
}

// execOne is exec that reports ErrNoRecord when nothing matched / exec exigeant une ligne
func (s store) execOne(ctx context.Context, b sq.Sqlizer) error {
	n, err := s.exec(ctx, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNoRecord
	}
	return nil
}

func (s store) queryRow(ctx context.Context, b sq.Sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.handle(s.db.QueryRowContext(ctx, query, args...).Scan(dest...))
}

func (s store) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	return rows, s.handle(err)
}

func (s store) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	var n int
	err := s.queryRow(ctx, b, &n)
	return n, err
}

// countBy runs a "key, COUNT(*)" grouping / Compte par clé de regroupement
func countBy[K ~string](ctx context.Context, s store, b sq.SelectBuilder) (map[K]int, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[K]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, s.handle(err)
		}
		out[K(key)] = n
	}
	return out, s.handle(rows.Err())
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
