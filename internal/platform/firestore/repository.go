package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Encoder serialises the strongly typed entity prior to persistence.
type Encoder[T any] func(value T) (any, error)

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// RepositoryOption customises a BaseRepository.
type RepositoryOption[T any] func(*BaseRepository[T])

// WithOperationTimeout bounds every non-transactional call.
func WithOperationTimeout[T any](timeout time.Duration) RepositoryOption[T] {
	return func(r *BaseRepository[T]) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithCodec overrides the default struct encoder and decoder.
func WithCodec[T any](encode Encoder[T], decode Decoder[T]) RepositoryOption[T] {
	return func(r *BaseRepository[T]) {
		if encode != nil {
			r.encode = encode
		}
		if decode != nil {
			r.decode = decode
		}
	}
}

// BaseRepository provides typed collection access. Every method joins the transaction bound to
// ctx when one is present.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
	timeout    time.Duration
	encode     Encoder[T]
	decode     Decoder[T]
}

// NewBaseRepository constructs a BaseRepository bound to a collection.
func NewBaseRepository[T any](provider *Provider, collection string, opts ...RepositoryOption[T]) *BaseRepository[T] {
	repo := &BaseRepository[T]{
		provider:   provider,
		collection: strings.TrimSpace(collection),
		encode:     func(value T) (any, error) { return value, nil },
		decode:     StructDecoder[T](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

// Get fetches and decodes the document by ID.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	var snap *firestore.DocumentSnapshot
	if tx, ok := TransactionFrom(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decodeDocument(snap)
}

// GetAll fetches several documents at once. Missing documents are skipped.
func (r *BaseRepository[T]) GetAll(ctx context.Context, ids []string) ([]Document[T], error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		ref, err := r.DocumentRef(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	var snaps []*firestore.DocumentSnapshot
	var err error
	if tx, ok := TransactionFrom(ctx); ok {
		snaps, err = tx.GetAll(refs)
	} else {
		client, cerr := r.provider.Client(ctx)
		if cerr != nil {
			return nil, cerr
		}
		snaps, err = client.GetAll(ctx, refs)
	}
	if err != nil {
		return nil, WrapError(r.op("get_all"), err)
	}

	docs := make([]Document[T], 0, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		doc, err := r.decodeDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Create writes a new document and fails with a conflict when the ID is taken.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	return r.write(ctx, "create", id, value, func(ctx context.Context, tx *firestore.Transaction, ref *firestore.DocumentRef, payload any) error {
		if tx != nil {
			return tx.Create(ref, payload)
		}
		_, err := ref.Create(ctx, payload)
		return err
	})
}

// Set upserts the given value under the provided document ID.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) error {
	return r.write(ctx, "set", id, value, func(ctx context.Context, tx *firestore.Transaction, ref *firestore.DocumentRef, payload any) error {
		if tx != nil {
			return tx.Set(ref, payload)
		}
		_, err := ref.Set(ctx, payload)
		return err
	})
}

// Replace overwrites an existing document and reports not-found when it is absent.
func (r *BaseRepository[T]) Replace(ctx context.Context, id string, value T) error {
	return r.write(ctx, "replace", id, value, func(ctx context.Context, tx *firestore.Transaction, ref *firestore.DocumentRef, payload any) error {
		if tx != nil {
			if _, err := tx.Get(ref); err != nil {
				return err
			}
			return tx.Set(ref, payload)
		}
		if _, err := ref.Get(ctx); err != nil {
			return err
		}
		_, err := ref.Set(ctx, payload)
		return err
	})
}

// Delete removes the document. With mustExist the call reports not-found for absent documents.
func (r *BaseRepository[T]) Delete(ctx context.Context, id string, mustExist bool) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	var pre []firestore.Precondition
	if mustExist {
		pre = append(pre, firestore.Exists)
	}
	if tx, ok := TransactionFrom(ctx); ok {
		err = tx.Delete(ref, pre...)
	} else {
		_, err = ref.Delete(ctx, pre...)
	}
	return WrapError(r.op("delete"), err)
}

// Query executes a collection query and returns the decoded documents.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	var iter *firestore.DocumentIterator
	if tx, ok := TransactionFrom(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var docs []Document[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		doc, err := r.decodeDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocumentRef exposes the document reference for callers that need raw transactional access.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) write(ctx context.Context, action, id string, value T, apply func(context.Context, *firestore.Transaction, *firestore.DocumentRef, any) error) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	payload, err := r.encode(value)
	if err != nil {
		return fmt.Errorf("firestore: encode document %s: %w", id, err)
	}
	tx, _ := TransactionFrom(ctx)
	return WrapError(r.op(action), apply(ctx, tx, ref, payload))
}

// bound applies the operation timeout outside transactions; transactional calls inherit the
// transaction deadline.
func (r *BaseRepository[T]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := TransactionFrom(ctx); ok || r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *BaseRepository[T]) decodeDocument(snap *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := r.decode(snap)
	if err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, err)
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Data:       entity,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	}
	if r.collection == "" {
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) op(action string) string {
	if r == nil || r.collection == "" {
		return "firestore." + action
	}
	return r.collection + "." + action
}

// StructDecoder populates the target struct using Firestore's native decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}
