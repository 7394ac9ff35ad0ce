package utility

import (
	"strconv"

	"github.com/google/uuid"
)

type ExecutionID = uuid.UUID

var executionNamespace = uuid.MustParse("6f1c2a4e-5d3b-4f7a-9c1e-0b8d7a6e5f40")

// NewExecutionID returns a time ordered id for a live run.
func NewExecutionID() ExecutionID {
	return uuid.Must(uuid.NewV7())
}

// SeededExecutionID derives a stable id so that repeated backtests with the same name and seed
// produce identical records.
func SeededExecutionID(name string, seed int64) ExecutionID {
	return uuid.NewSHA1(executionNamespace, []byte(name+"/"+strconv.FormatInt(seed, 10)))
}

func ParseExecutionID(value string) (ExecutionID, error) {
	return uuid.Parse(value)
}

// ClientOrderID derives the idempotency key sent to a broker for an order of the given run.
func ClientOrderID(executionID ExecutionID, orderID string) string {
	return uuid.NewSHA1(executionID, []byte(orderID)).String()
}
