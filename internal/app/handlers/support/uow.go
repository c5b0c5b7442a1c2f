package support

import (
	"context"

	"staybook/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit already in ctx or starts a read-only one.
// The returned cleanup is nil when the unit was reused.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	unit, execCtx, err := uow.Start(ctx, factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	return unit, execCtx, func() { _ = unit.Rollback(execCtx) }, nil
}

// BeginUnit returns the unit from ctx when the command already runs inside the
// transaction middleware, otherwise it starts one with opts. Commit is a no-op
// for reused units; cleanup rolls back an uncommitted unit and must be deferred.
func BeginUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (uow.UnitOfWork, context.Context, func() error, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, func() error { return nil }, func() {}, nil
	}
	unit, execCtx, err := uow.Start(ctx, factory, opts)
	if err != nil {
		return nil, ctx, nil, nil, err
	}
	done := false
	commit := func() error {
		if err := unit.Commit(execCtx); err != nil {
			return err
		}
		done = true
		return nil
	}
	cleanup := func() {
		if !done {
			_ = unit.Rollback(execCtx)
		}
	}
	return unit, execCtx, commit, cleanup, nil
}
