package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/redpanda-data/docs-edge/config"
)

// Object is a search record as stored in the index.
type Object map[string]any

// ID returns the record's objectID.
func (o Object) ID() string {
	id, _ := o["objectID"].(string)
	return id
}

// Action is a batch write kind.
type Action string

const (
	ActionAdd    Action = "addObject"
	ActionUpdate Action = "updateObject"
)

// Operation is one write in a multiple-batch call.
type Operation struct {
	Action Action
	Object Object
}

// Index is the part of the hosted search index the indexers use.
type Index interface {
	// Save upserts objects and returns how many were written.
	Save(ctx context.Context, objects []Object) (int, error)

	// Browse returns every object carrying tag, keyed by objectID.
	Browse(ctx context.Context, tag string) (map[string]Object, error)

	// Batch applies ops in one request.
	Batch(ctx context.Context, ops []Operation) error
}

// AlgoliaIndex implements Index on an Algolia index.
type AlgoliaIndex struct {
	client *search.Client
	index  *search.Index
	name   string
}

// NewAlgoliaIndex connects to the index named in cfg.
func NewAlgoliaIndex(cfg config.AlgoliaConfig) (*AlgoliaIndex, error) {
	if cfg.AppID == "" || cfg.AdminKey == "" || cfg.IndexName == "" {
		return nil, config.ErrMissingAlgolia
	}
	client := search.NewClient(cfg.AppID, cfg.AdminKey)
	return &AlgoliaIndex{
		client: client,
		index:  client.InitIndex(cfg.IndexName),
		name:   cfg.IndexName,
	}, nil
}

func (a *AlgoliaIndex) Save(ctx context.Context, objects []Object) (int, error) {
	res, err := a.index.SaveObjects(objects, ctx)
	if err != nil {
		return 0, fmt.Errorf("indexer: save objects: %w", err)
	}
	if err := res.Wait(ctx); err != nil {
		return 0, fmt.Errorf("indexer: wait for save: %w", err)
	}
	return len(res.ObjectIDs()), nil
}

func (a *AlgoliaIndex) Browse(ctx context.Context, tag string) (map[string]Object, error) {
	it, err := a.index.BrowseObjects(opt.Query(""), opt.TagFilter(tag), ctx)
	if err != nil {
		return nil, fmt.Errorf("indexer: browse %q: %w", tag, err)
	}

	out := make(map[string]Object)
	for {
		var obj Object
		if _, err := it.Next(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("indexer: browse %q: %w", tag, err)
		}
		out[obj.ID()] = obj
	}
}

func (a *AlgoliaIndex) Batch(ctx context.Context, ops []Operation) error {
	batch := make([]search.BatchOperationIndexed, len(ops))
	for i, op := range ops {
		batch[i] = search.BatchOperationIndexed{
			IndexName: a.name,
			BatchOperation: search.BatchOperation{
				Action: search.BatchAction(op.Action),
				Body:   op.Object,
			},
		}
	}
	if _, err := a.client.MultipleBatch(batch, ctx); err != nil {
		return fmt.Errorf("indexer: multiple batch: %w", err)
	}
	return nil
}

// toObject converts a typed record into its stored form, so that it compares
// equal to the same record read back from the index.
func toObject(record any) (Object, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// toObjects converts records, dropping any that do not encode.
func toObjects[T any](records []T) []Object {
	out := make([]Object, 0, len(records))
	for _, r := range records {
		obj, err := toObject(r)
		if err != nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}
