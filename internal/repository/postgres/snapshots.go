package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/pkg/errors"
)

type snapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	_ repository.SnapshotStore = (*snapshotRepository)(nil)
	_ repository.KeyLister     = (*snapshotRepository)(nil)
)

// NewSnapshotRepository creates a snapshot store backed by the state_snapshots table
func NewSnapshotRepository(db *sql.DB, logger *zap.Logger) *snapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &snapshotRepository{
		db:     db,
		logger: logger,
	}
}

func (r *snapshotRepository) Read(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM state_snapshots
		WHERE key = $1
	`

	var value []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "snapshot", ID: key}
	}
	if err != nil {
		r.logger.Error("Failed to read snapshot", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return value, nil
}

func (r *snapshotRepository) Write(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO state_snapshots (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, key, value, time.Now())
	if err != nil {
		r.logger.Error("Failed to write snapshot", zap.String("key", key), zap.Error(err))
		return err
	}

	return nil
}

func (r *snapshotRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM state_snapshots WHERE key = $1`

	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		r.logger.Error("Failed to delete snapshot", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (r *snapshotRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT key
		FROM state_snapshots
		WHERE key LIKE $1 ESCAPE '\'
		ORDER BY key ASC
	`

	rows, err := r.db.QueryContext(ctx, query, likePrefix(prefix))
	if err != nil {
		r.logger.Error("Failed to list snapshot keys", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns prefix into a LIKE pattern matching it literally
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
