package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserQuota is the per-user subscription allowance document
type UserQuota struct {
	UserID         string    `bson:"_id" json:"userId"`
	RemainingUnits float64   `bson:"remainingUnits" json:"remainingUnits"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// GetRemainingUnits returns the user's remaining quota units. An absent
// document means zero allowance.
func (c *MongoDBClient) GetRemainingUnits(userID string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var quota UserQuota
	err := c.quotasCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&quota)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query quota for user %s: %w", userID, err)
	}
	return quota.RemainingUnits, nil
}

// ConsumeUnits atomically decrements a user's quota by cost. The decrement is
// unconditional; the gate check happens before the pipeline starts.
func (c *MongoDBClient) ConsumeUnits(userID string, cost float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"remainingUnits": -cost},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	_, err := c.quotasCollection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to consume %.2f quota units for user %s: %w", cost, userID, err)
	}
	return nil
}
