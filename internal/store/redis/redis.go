package redisstore

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

// Store keeps the rotation under two keys, the serialized code list and the
// selection timestamp. Neither key carries a TTL; expiry is computed by the
// rotation engine.
type Store struct {
	client        *redis.Client
	codesKey      string
	selectedAtKey string
}

func New(addr string, password string, db int, keyPrefix string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(client, keyPrefix)
}

func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "storefront:promo-rotation"
	}
	return &Store{
		client:        client,
		codesKey:      keyPrefix + ":codes",
		selectedAtKey: keyPrefix + ":selected_at",
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Load(ctx context.Context) (*domain.RotationState, bool, error) {
	vals, err := s.client.MGet(ctx, s.codesKey, s.selectedAtKey).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "redis mget rotation")
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, false, nil
	}

	rawCodes, ok := vals[0].(string)
	if !ok {
		return nil, false, store.ErrInvalidState
	}
	rawSelectedAt, ok := vals[1].(string)
	if !ok {
		return nil, false, store.ErrInvalidState
	}

	var codes []domain.PromotionalCode
	if err := json.Unmarshal([]byte(rawCodes), &codes); err != nil {
		return nil, false, errors.Wrap(store.ErrInvalidState, err.Error())
	}
	selectedAt, err := strconv.ParseInt(rawSelectedAt, 10, 64)
	if err != nil {
		return nil, false, errors.Wrap(store.ErrInvalidState, err.Error())
	}

	return &domain.RotationState{Codes: codes, SelectedAt: selectedAt}, true, nil
}

func (s *Store) Save(ctx context.Context, state domain.RotationState) error {
	if state.SelectedAt <= 0 {
		return store.ErrInvalidState
	}
	payload, err := json.Marshal(state.Codes)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.codesKey, payload, 0)
		pipe.Set(ctx, s.selectedAtKey, strconv.FormatInt(state.SelectedAt, 10), 0)
		return nil
	})
	return errors.Wrap(err, "redis save rotation")
}
