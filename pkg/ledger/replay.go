package ledger

import (
	"fmt"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

// Replay rebuilds a ledger from a recorded fill log.
func Replay(initialCash fixed.Point, fills []common.Fill) (*Ledger, error) {
	l := New(initialCash)
	for idx, fill := range fills {
		if err := l.Apply(fill); err != nil {
			return nil, fmt.Errorf("replay fill %d: %w", idx, err)
		}
	}
	return l, nil
}
