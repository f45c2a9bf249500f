// internal/database/mongo.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"waste-tracking-api-server/config"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/store"
)

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info("connected to MongoDB", "db", cfg.DBName)
	return client, client.Database(cfg.DBName), nil
}

// Indexes lists the indexes each collection needs.
func Indexes() map[string][]mongo.IndexModel {
	unique := func(key string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}, Options: options.Index().SetUnique(true)}
	}
	return map[string][]mongo.IndexModel{
		store.ShipmentsCollection: {
			unique("shipmentNumber"),
			{Keys: bson.D{{Key: "approval.overallStatus", Value: 1}, {Key: "approval.autoApprovalDeadline", Value: 1}}},
			{Keys: bson.D{{Key: "generatorCompanyID", Value: 1}}},
			{Keys: bson.D{{Key: "transporterCompanyID", Value: 1}}},
			{Keys: bson.D{{Key: "recyclerCompanyID", Value: 1}}},
			{Keys: bson.D{{Key: "driverID", Value: 1}}},
		},
		store.CompaniesCollection: {unique("companyID")},
		store.DriversCollection:   {unique("driverID")},
		store.UsersCollection:     {unique("email")},
		store.DriverLocationsCollection: {
			{Keys: bson.D{{Key: "driverID", Value: 1}, {Key: "recordedAt", Value: -1}}},
			{Keys: bson.D{{Key: "shipmentID", Value: 1}, {Key: "recordedAt", Value: -1}}},
		},
		store.DocumentsCollection: {
			{Keys: bson.D{{Key: "shipmentID", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, models := range Indexes() {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
