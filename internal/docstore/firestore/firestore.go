// Package firestore stores documents in Cloud Firestore. A destination is a
// top-level collection and each document is stored under its key.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docmigrate/internal/docstore"
	"docmigrate/internal/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// MaxBatchWrites is the Firestore limit on writes in one atomic batch.
const MaxBatchWrites = 500

// newClient is a test hook.
var newClient = func(ctx context.Context, project, database string, opts ...option.ClientOption) (*firestore.Client, error) {
	if database == "" {
		return firestore.NewClient(ctx, project, opts...)
	}
	return firestore.NewClientWithDatabase(ctx, project, database, opts...)
}

func init() {
	docstore.Register("firestore", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		if strings.TrimSpace(cfg.Project) == "" {
			return nil, fmt.Errorf("firestore: project is required")
		}
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		c, err := newClient(ctx, cfg.Project, cfg.Database, opts...)
		if err != nil {
			return nil, fmt.Errorf("firestore: client: %w", err)
		}
		return &Store{client: c}, nil
	})
}

// Store is a Firestore-backed docstore.Store.
type Store struct {
	client *firestore.Client
}

var _ docstore.Store = (*Store)(nil)

// Exists reports whether the collection has at least one document.
func (s *Store) Exists(ctx context.Context, dest string) (bool, error) {
	iter := s.client.Collection(dest).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("firestore: probe %s: %w", dest, err)
	}
	return true, nil
}

// Commit writes docs in a single WriteBatch.
func (s *Store) Commit(ctx context.Context, dest string, docs []model.KeyedDocument) error {
	if len(docs) > MaxBatchWrites {
		return fmt.Errorf("firestore: %d documents exceed the batch limit of %d", len(docs), MaxBatchWrites)
	}
	if len(docs) == 0 {
		return nil
	}
	coll := s.client.Collection(dest)
	if coll == nil {
		return fmt.Errorf("firestore: invalid collection name %q", dest)
	}
	wb := s.client.Batch()
	for _, d := range docs {
		wb.Set(coll.Doc(d.Key), d.Document)
	}
	if _, err := wb.Commit(ctx); err != nil {
		return fmt.Errorf("firestore: commit %s: %w", dest, err)
	}
	return nil
}

// Close implements docstore.Store.
func (s *Store) Close() error { return s.client.Close() }
