// Package memory holds process-local repositories used for development
// (DB_DRIVER=memory) and by service tests. Tenant-owned repositories filter
// every read through tenancy.Enforcer.
package memory

import (
	"context"
	"sync"

	"github.com/upb/faculty-auth/repositories"
)

type transactionContextKey struct{}

// TransactionManager serializes transactions. Writes made through a
// transaction context register an undo step that Rollback replays.
type TransactionManager struct {
	mu sync.Mutex
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// Begin blocks until no other transaction is open
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tm.mu.Lock()
	tx := &Transaction{release: tm.mu.Unlock}
	tx.ctx = context.WithValue(ctx, transactionContextKey{}, tx)
	return tx, nil
}

// Transaction implements repositories.Transaction
type Transaction struct {
	ctx     context.Context
	undo    []func()
	once    sync.Once
	release func()
}

// Commit keeps the writes
func (t *Transaction) Commit() error {
	t.once.Do(func() {
		t.undo = nil
		t.release()
	})
	return nil
}

// Rollback reverts the writes in reverse order
func (t *Transaction) Rollback() error {
	t.once.Do(func() {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.undo = nil
		t.release()
	})
	return nil
}

// Context returns the transaction-bound context
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// onRollback registers fn when ctx carries a transaction
func onRollback(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(transactionContextKey{}).(*Transaction); ok {
		tx.undo = append(tx.undo, fn)
	}
}
