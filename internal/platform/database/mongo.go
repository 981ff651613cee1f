package database

import (
	"context"
	"time"
	"timetrack/internal/domain/repository"
	"timetrack/internal/platform/config"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	MongoClient *mongo.Client
	MongoDB     *mongo.Database
)

func ConnectMongo() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.AppConfig.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("error opening MongoDB client")
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal().Err(err).Msg("error connecting to MongoDB")
	}

	MongoClient = client
	MongoDB = client.Database(config.AppConfig.MongoDB)

	if err := repository.EnsureMongoIndexes(ctx, MongoDB); err != nil {
		log.Fatal().Err(err).Msg("error creating MongoDB indexes")
	}
	log.Info().Str("database", config.AppConfig.MongoDB).Msg("connected to MongoDB")
}

func CloseMongo() {
	if MongoClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := MongoClient.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("MongoDB disconnect failed")
		return
	}
	log.Info().Msg("MongoDB connection closed")
}
