package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/logger"
)

// Collection names.
const (
	UsersCollection     = "users"
	ListingsCollection  = "listings"
	InquiriesCollection = "inquiries"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the primary node
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return client, client.Database(dbName), nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	logger.Info("MongoDB connection closed")
	return nil
}

// Ping checks the primary is reachable. Used by the health endpoint.
func Ping(ctx context.Context, database *mongo.Database) error {
	return database.Client().Ping(ctx, readpref.Primary())
}

// IndexModels lists the indexes each collection needs.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "mobile_number", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("mobile_number_unique"),
			},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		ListingsCollection: {
			{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "crop_name", Value: 1}, {Key: "location_district", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		InquiriesCollection: {
			{Keys: bson.D{{Key: "from_buyer", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "to_farmer", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// EnsureIndexes creates missing indexes. The unique mobile number index is what
// makes duplicate registration races fail.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for collection, models := range IndexModels() {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
