package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DocumentChunk is one embedded passage of a user's uploaded document. Chunks
// are written by the ingestion path (out of scope here); the pipeline reads
// them for the my_documents / hybrid source modes.
type DocumentChunk struct {
	ChunkID    string    `bson:"_id" json:"chunkId"`
	UserID     string    `bson:"userId" json:"userId"`
	DocumentID string    `bson:"documentId" json:"documentId"`
	Text       string    `bson:"text" json:"text"`
	Embedding  []float32 `bson:"embedding" json:"embedding"`
}

// StoredDocument is the metadata record for an uploaded document
type StoredDocument struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Filename  string    `bson:"filename" json:"filename"`
	CreatedOn time.Time `bson:"createdOn" json:"createdOn"`
}

// GetUserChunks loads all embedded chunks for a user's private index
func (c *MongoDBClient) GetUserChunks(ctx context.Context, userID string) ([]DocumentChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cursor, err := c.chunksCollection.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var chunks []DocumentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	return chunks, nil
}

// ResolveFilename maps an internal document id back to the original upload
// filename. Returns "" when the document no longer exists.
func (c *MongoDBClient) ResolveFilename(ctx context.Context, userID, documentID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc StoredDocument
	err := c.documentCollection.FindOne(ctx, bson.M{"_id": documentID, "userId": userID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve filename for document %s: %w", documentID, err)
	}
	return doc.Filename, nil
}
