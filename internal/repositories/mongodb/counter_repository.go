package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	pmongo "github.com/trendora/api/internal/platform/mongodb"
	"github.com/trendora/api/internal/repositories"
)

const countersCollection = "counters"

// CounterRepository allocates sequence numbers with an atomic upserting $inc.
type CounterRepository struct {
	collection
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs a MongoDB-backed counter repository.
func NewCounterRepository(provider *pmongo.Provider, timeout time.Duration) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires mongodb provider")
	}
	return &CounterRepository{collection{provider: provider, name: countersCollection, timeout: timeout}}, nil
}

func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counter id is required")
	}
	if step <= 0 {
		step = 1
	}
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	var doc struct {
		CurrentValue int64 `bson:"currentValue"`
	}
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"currentValue": step}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, pmongo.WrapError(r.op("next"), err)
	}
	return doc.CurrentValue, nil
}
