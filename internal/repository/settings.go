package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM loyalty_settings`)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("GetAll: scan: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetAll: rows: %w", err)
	}
	return values, nil
}

// Upsert writes all values in one transaction.
func (r *SettingsRepository) Upsert(ctx context.Context, values map[string]string, updatedBy uuid.UUID) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO loyalty_settings (key, value, updated_by, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (key) DO UPDATE
				SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
				k, values[k], updatedBy,
			)
			if err != nil {
				return fmt.Errorf("Upsert: %s: %w", k, err)
			}
		}
		return nil
	})
}
