package bus

import (
	"context"

	"github.com/peter-kozarec/quantex/pkg/common"
)

// EventHandler processes one event to completion. A returned error stops the run.
type EventHandler[T any] = func(context.Context, T) error

type MarketEventHandler = EventHandler[common.Bar]
type SignalEventHandler = EventHandler[common.Signal]
type OrderEventHandler = EventHandler[common.OrderRequest]
type FillEventHandler = EventHandler[common.Fill]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) error {
		for _, handler := range handlers {
			if err := handler(ctx, event); err != nil {
				return err
			}
		}
		return nil
	}
}
