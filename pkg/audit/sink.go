// Package audit keeps the write-ahead record of every decision, submission and fill of a run.
//
// Records are written synchronously before the engine acts on them: the order and its risk
// decision before the broker sees the order, a fill before the ledger books it. A failed write
// must stop the run.
package audit

import (
	"context"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

type Sink interface {
	// RecordDecision stores the order together with its risk decision as one record.
	RecordDecision(ctx context.Context, order common.OrderRequest, decision common.RiskDecision) error
	RecordSubmission(ctx context.Context, submission common.Submission) error
	RecordFill(ctx context.Context, fill common.Fill) error
	Close() error
}

// FillLog returns the fills recorded for a run in the order they were written.
type FillLog interface {
	Fills(ctx context.Context, executionID utility.ExecutionID) ([]common.Fill, error)
}

type Kind string

const (
	KindDecision   Kind = "decision"
	KindSubmission Kind = "submission"
	KindFill       Kind = "fill"
)

// Record is one entry of the audit log. Exactly one of the payload groups is set, matching Kind.
type Record struct {
	Seq  int  `json:"seq"`
	Kind Kind `json:"kind"`

	Order      common.OrderRequest `json:"order,omitempty"`
	Decision   common.RiskDecision `json:"decision,omitempty"`
	Submission common.Submission   `json:"submission,omitempty"`
	Fill       common.Fill         `json:"fill,omitempty"`
}

// OrderId returns the id of the order the record belongs to.
func (r Record) OrderId() string {
	switch r.Kind {
	case KindDecision:
		return r.Order.Id
	case KindSubmission:
		return r.Submission.OrderId
	case KindFill:
		return r.Fill.OrderId
	default:
		return ""
	}
}
