package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/trendora/api/internal/platform/firestore"
	"github.com/trendora/api/internal/repositories"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository allocates sequence numbers with a read-modify-write transaction.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
	now      func() time.Time
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection),
		now:      time.Now,
	}, nil
}

// Next increments the counter and returns the new value. Inside an ambient transaction the
// increment commits or rolls back together with the caller's writes.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counter id is required")
	}
	if step <= 0 {
		step = 1
	}

	var next int64
	increment := func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		doc := counterDocument{}
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore counters decode %s: %w", id, err)
			}
		case codes.NotFound:
		default:
			return pfirestore.WrapError("counters.next", err)
		}
		doc.CurrentValue += step
		doc.UpdatedAt = r.now().UTC()
		if err := tx.Set(ref, doc); err != nil {
			return pfirestore.WrapError("counters.next", err)
		}
		next = doc.CurrentValue
		return nil
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		if err := increment(ctx, tx); err != nil {
			return 0, err
		}
		return next, nil
	}
	if err := r.provider.RunTransaction(ctx, increment); err != nil {
		return 0, err
	}
	return next, nil
}
