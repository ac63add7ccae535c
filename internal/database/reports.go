package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"kb-research-report/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertReport persists a new (Pending) report record
func (c *MongoDBClient) InsertReport(record *models.ReportRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.reportsCollection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// UpdateReport applies the terminal fields to a report record. Returns the
// number of documents modified; the pipeline's single terminal write means
// this is 0 or 1.
func (c *MongoDBClient) UpdateReport(id string, fields bson.M) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.reportsCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return 0, fmt.Errorf("failed to update report %s: %w", id, err)
	}
	return result.ModifiedCount, nil
}

// FindReport retrieves one report by id, scoped to its owning user.
// Returns (nil, nil) when no such report exists.
func (c *MongoDBClient) FindReport(userID, id string) (*models.ReportRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var record models.ReportRecord
	err := c.reportsCollection.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query report %s: %w", id, err)
	}
	return &record, nil
}

// ListReports returns a user's reports, newest first
func (c *MongoDBClient) ListReports(userID string, limit int64) ([]models.ReportRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdOn", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := c.reportsCollection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ReportRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return records, nil
}

// ListReportsByStatus returns a user's reports filtered by lifecycle state
func (c *MongoDBClient) ListReportsByStatus(userID string, status models.ReportStatus) ([]models.ReportRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"userId": userID, "status": status}
	cursor, err := c.reportsCollection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdOn", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s reports: %w", status, err)
	}
	defer cursor.Close(ctx)

	var records []models.ReportRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return records, nil
}

// DeleteReport removes a report. Deletion is user-initiated only; the
// pipeline never deletes records.
func (c *MongoDBClient) DeleteReport(userID, id string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := c.reportsCollection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	return result.DeletedCount, nil
}

// FailOrphanedReports marks every Pending report created before cutoff as
// Failure. This reclaims runs abandoned by crashed workers; there is no
// heartbeat beyond this wall-clock check.
func (c *MongoDBClient) FailOrphanedReports(cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := bson.M{
		"status":    models.ReportStatusPending,
		"createdOn": bson.M{"$lt": cutoff},
	}
	update := bson.M{"$set": bson.M{"status": models.ReportStatusFailure}}

	result, err := c.reportsCollection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep orphaned reports: %w", err)
	}
	if result.ModifiedCount > 0 {
		log.Printf("Orphan sweep failed %d stale pending report(s)", result.ModifiedCount)
	}
	return result.ModifiedCount, nil
}

// CountReports returns the total number of report records (used by dbcheck)
func (c *MongoDBClient) CountReports() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.reportsCollection.CountDocuments(ctx, bson.M{})
}
