// Package mongo stores documents in MongoDB. A destination is a collection
// and each document's key is its _id. Batches are committed inside a
// multi-document transaction, so the server must be a replica set or a
// sharded cluster.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docmigrate/internal/docstore"
	"docmigrate/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// newClient is a test hook.
var newClient = func(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

func init() {
	docstore.Register("mongo", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("mongo: URI must not be empty")
		}
		if strings.TrimSpace(cfg.Database) == "" {
			return nil, fmt.Errorf("mongo: database is required")
		}
		c, err := newClient(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("mongo: connect: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo: ping: %w", err)
		}
		return &Store{client: c, db: c.Database(cfg.Database)}, nil
	})
}

// Store is a MongoDB-backed docstore.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// Exists reports whether the collection holds at least one document.
func (s *Store) Exists(ctx context.Context, dest string) (bool, error) {
	n, err := s.db.Collection(dest).CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: probe %s: %w", dest, err)
	}
	return n > 0, nil
}

// Commit replaces-or-inserts every document in one transaction.
func (s *Store) Commit(ctx context.Context, dest string, docs []model.KeyedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	models := replaceModels(docs)
	coll := s.db.Collection(dest)

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return coll.BulkWrite(sc, models, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("mongo: commit %s: %w", dest, err)
	}
	return nil
}

// replaceModels builds one upserting replace per document, keyed on _id.
func replaceModels(docs []model.KeyedDocument) []mongo.WriteModel {
	out := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		out = append(out, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: d.Key}}).
			SetReplacement(d.Document).
			SetUpsert(true))
	}
	return out
}

// Close implements docstore.Store.
func (s *Store) Close() error { return s.client.Disconnect(context.Background()) }
