package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// TxConfigurer lets a command pick its own transaction options.
type TxConfigurer interface {
	TxOptions() uow.TxOptions
}

// CommandTxOptions honours TxConfigurer and defaults to a read-write transaction.
func CommandTxOptions(cmd commands.Command) uow.TxOptions {
	if c, ok := cmd.(TxConfigurer); ok {
		return c.TxOptions()
	}
	return uow.TxOptions{}
}

// Transaction runs each command inside a fresh unit of work, committing when
// the handler succeeds and rolling back otherwise.
func Transaction(factory uow.UoWFactory, optsFor TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	if optsFor == nil {
		optsFor = CommandTxOptions
	}
	return func(next commands.Bus) commands.Bus {
		return CommandFunc(func(ctx context.Context, cmd commands.Command) (res any, err error) {
			unit, txCtx, err := uow.Start(ctx, factory, optsFor(cmd))
			if err != nil {
				return nil, err
			}
			defer func() {
				if err != nil {
					_ = unit.Rollback(txCtx)
				}
			}()
			if res, err = next.Dispatch(txCtx, cmd); err != nil {
				return nil, err
			}
			if err = unit.Commit(txCtx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
