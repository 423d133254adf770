package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/trendora/api/internal/platform/config"
)

const (
	defaultConnectTimeout         = 10 * time.Second
	defaultServerSelectionTimeout = 5 * time.Second
	defaultMaxPoolSize            = 100
)

// ErrProviderClosed is returned once Close has been called.
var ErrProviderClosed = errors.New("mongodb: provider is closed")

// Provider lazily connects to MongoDB and hands out the configured database.
type Provider struct {
	cfg config.MongoConfig

	mu     sync.Mutex
	client *mongo.Client
	closed bool
}

// NewProvider constructs a Provider for the given configuration.
func NewProvider(cfg config.MongoConfig) *Provider {
	return &Provider{cfg: cfg}
}

// Client returns the shared client, connecting on first use.
func (p *Provider) Client(ctx context.Context) (*mongo.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.client != nil {
		return p.client, nil
	}
	uri := strings.TrimSpace(p.cfg.URI)
	if uri == "" {
		return nil, errors.New("mongodb: uri is required")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(defaultConnectTimeout).
		SetServerSelectionTimeout(defaultServerSelectionTimeout).
		SetMaxPoolSize(defaultMaxPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	p.client = client
	return client, nil
}

// Database returns the configured database handle.
func (p *Provider) Database(ctx context.Context) (*mongo.Database, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(p.cfg.Database), nil
}

// Collection returns a handle on the named collection.
func (p *Provider) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Ping verifies the primary is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return WrapError("mongodb.ping", client.Ping(ctx, readpref.Primary()))
}

// Close disconnects the client. The Provider cannot be reused afterwards.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.closed = true
	p.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// UnitOfWork runs repository calls inside a MongoDB multi-document transaction. Requires a
// replica set or sharded cluster.
type UnitOfWork struct {
	provider *Provider
}

// NewUnitOfWork constructs a UnitOfWork bound to the provider.
func NewUnitOfWork(provider *Provider) *UnitOfWork {
	return &UnitOfWork{provider: provider}
}

// RunInTx executes fn with a session context. Nested calls join the outer session.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("mongodb: unit of work function is nil")
	}
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	client, err := u.provider.Client(ctx)
	if err != nil {
		return err
	}
	session, err := client.StartSession()
	if err != nil {
		return WrapError("mongodb.session", err)
	}
	defer session.EndSession(ctx)

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if err != nil && fnErr != nil && errors.Is(err, fnErr) {
		return fnErr
	}
	return WrapError("mongodb.transaction", err)
}
