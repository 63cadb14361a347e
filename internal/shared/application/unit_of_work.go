package application

import (
	"context"
	"sync"
)

// UnitOfWork scopes a group of repository writes to a single transaction.
// Begin returns a context carrying the transaction; repositories pick it up from there.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

type commitHooksKey struct{}

// commitHooks collects work that must only happen once the outermost
// unit of work has committed.
type commitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

func (h *commitHooks) add(fn func(context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *commitHooks) run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// InUnitOfWork reports whether ctx belongs to a running WithUnitOfWork call.
func InUnitOfWork(ctx context.Context) bool {
	_, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	return ok
}

// AfterCommit defers fn until the enclosing unit of work commits. fn is
// dropped if the unit of work rolls back. Outside a unit of work fn runs
// immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if hooks, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		hooks.add(fn)
		return
	}
	fn(ctx)
}

// WithUnitOfWork runs fn inside a transaction. Any error from fn or from Commit
// leaves the store as it was before Begin. Hooks registered with AfterCommit
// run after the outermost commit succeeds.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	hooks, nested := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !nested {
		hooks = &commitHooks{}
	}

	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	if !nested {
		txCtx = context.WithValue(txCtx, commitHooksKey{}, hooks)
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	if err := uow.Commit(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}
	if !nested {
		hooks.run(ctx)
	}
	return nil
}
