// Package database owns the backing-store connections. Both stores are
// pinged at startup so a misconfigured deployment fails before it serves a
// single request.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func ConnectMongo(ctx context.Context, uri, dbName string, logger *zap.Logger) (*mongo.Database, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	logger.Info("MongoDB connected", zap.String("database", dbName))
	return client.Database(dbName), client, nil
}
