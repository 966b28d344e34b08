package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"tictacarm/internal/domain/game"
	errs "tictacarm/internal/errors"
)

const gamesCollection = "games"

// ArchiveRepository stores finished games in the mongo games collection.
type ArchiveRepository struct {
	log   *zap.SugaredLogger
	mongo *mongo.Database
}

func NewArchiveRepository(log *zap.SugaredLogger, mongo *mongo.Database) *ArchiveRepository {
	return &ArchiveRepository{
		log:   log,
		mongo: mongo,
	}
}

func (a *ArchiveRepository) SaveGame(ctx context.Context, rec game.Record) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := a.mongo.Collection(gamesCollection).InsertOne(ctx, rec)
	if err != nil {
		return err
	}

	a.log.Infof("game %s archived, outcome %q", rec.ID, rec.Outcome)
	return nil
}

func (a *ArchiveRepository) GetGameByID(ctx context.Context, id string) (game.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec game.Record
	err := a.mongo.Collection(gamesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return game.Record{}, errs.ErrGameNotFound
	}
	if err != nil {
		return game.Record{}, err
	}
	return rec, nil
}

// ListGames returns the most recently finished games first.
func (a *ArchiveRepository) ListGames(ctx context.Context, limit int64) ([]game.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := a.mongo.Collection(gamesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]game.Record, 0)
	for cursor.Next(ctx) {
		var rec game.Record
		if err := cursor.Decode(&rec); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, cursor.Err()
}
