package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"kb-research-report/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBClient wraps the MongoDB connection and the collections used by the
// report pipeline: reports, user quotas and document chunks.
type MongoDBClient struct {
	client             *mongo.Client
	database           *mongo.Database
	reportsCollection  *mongo.Collection
	quotasCollection   *mongo.Collection
	chunksCollection   *mongo.Collection
	documentCollection *mongo.Collection
}

// NewMongoDBClient creates a new MongoDB client
func NewMongoDBClient(cfg config.MongoDBConfig) (*MongoDBClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Build connection URI
	uri := cfg.URI
	if uri == "" {
		if cfg.Username != "" && cfg.Password != "" {
			userInfo := url.UserPassword(cfg.Username, cfg.Password)
			uri = fmt.Sprintf("mongodb://%s@%s:%s/%s?authSource=%s",
				userInfo.String(),
				cfg.Host,
				cfg.Port,
				cfg.Database,
				url.QueryEscape(cfg.AuthSource),
			)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%s/%s",
				cfg.Host,
				cfg.Port,
				cfg.Database,
			)
		}
	}

	// Log connection attempt (mask password for security)
	logURI := uri
	if cfg.Password != "" && cfg.Username != "" {
		userInfo := url.User(cfg.Username)
		authSource := cfg.AuthSource
		if authSource == "" {
			authSource = "admin"
		}
		logURI = fmt.Sprintf("mongodb://%s:***@%s:%s/%s?authSource=%s",
			userInfo.String(), cfg.Host, cfg.Port, cfg.Database, url.QueryEscape(authSource))
	}
	log.Printf("Attempting to connect to MongoDB at %s", logURI)

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at %s: %w", logURI, err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", logURI, err)
	}

	database := client.Database(cfg.Database)
	c := &MongoDBClient{
		client:             client,
		database:           database,
		reportsCollection:  database.Collection("reports"),
		quotasCollection:   database.Collection("user_quotas"),
		chunksCollection:   database.Collection("document_chunks"),
		documentCollection: database.Collection("documents"),
	}

	// Indexes for the report listing and sweep queries
	reportIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdOn", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdOn", Value: 1}}},
	}
	if _, err := c.reportsCollection.Indexes().CreateMany(ctx, reportIndexes); err != nil {
		// Indexes might already exist, that's okay
		log.Printf("Note: MongoDB report index creation: %v", err)
	}

	chunkIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "documentId", Value: 1}},
	}
	if _, err := c.chunksCollection.Indexes().CreateOne(ctx, chunkIndex); err != nil {
		log.Printf("Note: MongoDB chunk index creation: %v", err)
	}

	return c, nil
}

// Close closes the MongoDB client connection
func (c *MongoDBClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Ping verifies the connection is alive
func (c *MongoDBClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}
