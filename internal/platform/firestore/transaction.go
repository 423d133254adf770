package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout caps the transaction duration.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

type txKey struct{}

// WithTransaction stores tx on ctx so repositories called with the returned context join it.
func WithTransaction(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TransactionFrom returns the transaction bound to ctx, if any.
func TransactionFrom(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// RunTransaction executes fn within a transaction on the provided client. The transaction is also
// bound to the context handed to fn.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > cfg.timeout {
		var cancel context.CancelFunc
		txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	var fnErr error
	err := client.RunTransaction(txnCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = fn(WithTransaction(ctx, tx), tx)
		return fnErr
	}, firestore.MaxAttempts(cfg.attempts))
	if err != nil && fnErr != nil && errors.Is(err, fnErr) {
		// Errors raised by fn reach the caller unchanged.
		return fnErr
	}
	return WrapError("transaction", err)
}

// UnitOfWork runs repository calls in a single Firestore transaction. Nested calls join the
// outer transaction.
type UnitOfWork struct {
	provider *Provider
	opts     []TxOption
}

// NewUnitOfWork constructs a UnitOfWork bound to the provider.
func NewUnitOfWork(provider *Provider, opts ...TxOption) *UnitOfWork {
	return &UnitOfWork{provider: provider, opts: opts}
}

// RunInTx executes fn inside a transaction. Firestore requires every read to precede the first
// write inside fn.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore: unit of work function is nil")
	}
	if _, ok := TransactionFrom(ctx); ok {
		return fn(ctx)
	}
	return u.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	}, u.opts...)
}
