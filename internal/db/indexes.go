package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collectionIndexes declares the index set per collection.
//
// The two partial unique indexes back the idempotency guarantees: one active
// record per (showing, action_type) for reversible post-showing actions, and
// one favorite per (buyer, mls_id) when an MLS id is known.
func collectionIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"showing_requests": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "agent.agent_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "completion_notified", Value: 1}}},
		},
		"tour_agreements": {
			{
				Keys:    bson.D{{Key: "showing_request_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"post_showing_actions": {
			{Keys: bson.D{{Key: "showing_request_id", Value: 1}, {Key: "action_type", Value: 1}}},
			{
				Keys: bson.D{{Key: "showing_request_id", Value: 1}, {Key: "action_type", Value: 1}, {Key: "buyer_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{
						"action_type": bson.M{"$in": bson.A{"favorited", "hired_agent"}},
					}),
			},
		},
		"favorite_properties": {
			{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "mls_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"mls_id": bson.M{"$type": "string", "$gt": ""}}),
			},
		},
		"messages": {
			{Keys: bson.D{{Key: "showing_request_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read_at", Value: 1}}},
		},
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"properties": {
			{Keys: bson.D{{Key: "address", Value: 1}}},
			{
				Keys: bson.D{{Key: "mls_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"mls_id": bson.M{"$type": "string", "$gt": ""}}),
			},
		},
	}
}
