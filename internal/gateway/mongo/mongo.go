// Package mongo keeps the budget document in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"budget/internal/core"
	"budget/internal/gateway"
)

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect builds a client for uri and selects the budgetData collection of
// dbName. The driver dials lazily, so an unreachable server only surfaces
// from Ping, Load and Save.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	return &Store{
		client:     client,
		collection: client.Database(dbName).Collection(gateway.Collection),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Load(ctx context.Context) (core.Document, error) {
	var raw documentDTO
	err := s.collection.FindOne(ctx, bson.M{"_id": gateway.DocumentID}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find budget document: %w", err)
	}
	return fromDTO(raw)
}

func (s *Store) Save(ctx context.Context, doc core.Document) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": gateway.DocumentID},
		toDTO(doc),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace budget document: %w", err)
	}
	return nil
}
