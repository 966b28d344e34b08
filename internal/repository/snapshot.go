package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tictacarm/internal/domain/game"
	errs "tictacarm/internal/errors"
)

const SnapshotKey = "tictacarm:snapshot"

// SnapshotRepository keeps the latest game state, with its move history,
// in redis so displays running elsewhere and a restarted process can pick
// it up.
type SnapshotRepository struct {
	redis *redis.Client
	log   *zap.SugaredLogger
	key   string
}

func NewSnapshotRepository(log *zap.SugaredLogger, redis *redis.Client) *SnapshotRepository {
	return &SnapshotRepository{
		redis: redis,
		log:   log,
		key:   SnapshotKey,
	}
}

func (s *SnapshotRepository) Save(ctx context.Context, saved game.SavedGame) error {
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.key, data, 0).Err()
}

func (s *SnapshotRepository) Last(ctx context.Context) (game.SavedGame, error) {
	val, err := s.redis.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return game.SavedGame{}, errs.ErrGameNotFound
	}
	if err != nil {
		return game.SavedGame{}, err
	}

	var saved game.SavedGame
	if err := json.Unmarshal([]byte(val), &saved); err != nil {
		return game.SavedGame{}, fmt.Errorf("stored game is corrupt: %w", err)
	}
	return saved, nil
}
