package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	pmongo "github.com/trendora/api/internal/platform/mongodb"
)

// collection binds a repository to one MongoDB collection with a per-call timeout. Session
// contexts survive the timeout wrapper, so calls inside RunInTx stay transactional.
type collection struct {
	provider *pmongo.Provider
	name     string
	timeout  time.Duration
}

func (c collection) open(ctx context.Context) (context.Context, *mongo.Collection, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	coll, err := c.provider.Collection(ctx, c.name)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, coll, cancel, nil
}

func (c collection) op(action string) string {
	return c.name + "." + action
}
