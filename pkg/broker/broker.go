// Package broker defines the execution venue abstraction shared by the simulated and live paths.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/peter-kozarec/quantex/pkg/common"
)

var ErrUnknownOrder = errors.New("unknown broker order")

type Broker interface {
	// Submit hands an order to the venue and returns the venue's order id. A *RejectionError
	// means the venue refused it outright and it must not be retried.
	Submit(ctx context.Context, order common.OrderRequest) (string, error)
	// PollFills returns fills produced since the previous call, in execution order.
	PollFills(ctx context.Context) ([]common.Fill, error)
	// PollClosures returns orders that closed with an unfilled remainder since the previous
	// call. Fills of a closed order may still arrive on later fill polls.
	PollClosures(ctx context.Context) ([]common.Closure, error)
	// Cancel removes the unfilled remainder. Cancelling a filled order is a no-op.
	Cancel(ctx context.Context, brokerOrderId string) error
}

type RejectionError struct {
	OrderId string
	Reason  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order %s rejected: %s", e.OrderId, e.Reason)
}

// ConnectivityError is a transient failure talking to the venue. Attempts counts the calls made
// before giving up.
type ConnectivityError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}

func IsConnectivity(err error) bool {
	var connectivity *ConnectivityError
	return errors.As(err, &connectivity)
}

// Attempts reports how many calls an error took, or 1 when it does not say.
func Attempts(err error) int {
	var connectivity *ConnectivityError
	if errors.As(err, &connectivity) && connectivity.Attempts > 0 {
		return connectivity.Attempts
	}
	return 1
}
