package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS promo_rotations (
	rotation_key   text PRIMARY KEY,
	codes          jsonb NOT NULL,
	selected_at_ms bigint NOT NULL,
	updated_at     timestamptz NOT NULL DEFAULT now()
)`

type Store struct {
	db  *sql.DB
	key string
}

func New(ctx context.Context, databaseURL string, key string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if key == "" {
		key = "default"
	}
	return &Store{db: db, key: key}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil && !isDuplicateObject(err) {
		return err
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (*domain.RotationState, bool, error) {
	var (
		rawCodes   []byte
		selectedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT codes, selected_at_ms
		FROM promo_rotations
		WHERE rotation_key = $1
	`, s.key).Scan(&rawCodes, &selectedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var codes []domain.PromotionalCode
	if err := json.Unmarshal(rawCodes, &codes); err != nil {
		return nil, false, store.ErrInvalidState
	}
	return &domain.RotationState{Codes: codes, SelectedAt: selectedAt}, true, nil
}

// Save upserts the single row for this rotation key; the statement is atomic
// so readers see either the previous or the new pair.
func (s *Store) Save(ctx context.Context, state domain.RotationState) error {
	if state.SelectedAt <= 0 {
		return store.ErrInvalidState
	}
	payload, err := json.Marshal(state.Codes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO promo_rotations (rotation_key, codes, selected_at_ms, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (rotation_key)
		DO UPDATE SET codes = EXCLUDED.codes, selected_at_ms = EXCLUDED.selected_at_ms, updated_at = now()
	`, s.key, payload, state.SelectedAt)
	return err
}

// isDuplicateObject covers concurrent CREATE TABLE IF NOT EXISTS races, which
// postgres reports as a unique violation on pg_type.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "42P07"
	}
	return false
}
