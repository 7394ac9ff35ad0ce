package audit

import (
	"context"
	"sync"

	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/utility"
)

var _ Sink = (*Memory)(nil)
var _ FillLog = (*Memory)(nil)

// Memory keeps the log in process. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordDecision(_ context.Context, order common.OrderRequest, decision common.RiskDecision) error {
	m.append(Record{Kind: KindDecision, Order: order, Decision: decision})
	return nil
}

func (m *Memory) RecordSubmission(_ context.Context, submission common.Submission) error {
	m.append(Record{Kind: KindSubmission, Submission: submission})
	return nil
}

func (m *Memory) RecordFill(_ context.Context, fill common.Fill) error {
	m.append(Record{Kind: KindFill, Fill: fill})
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) append(record Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Seq = len(m.records) + 1
	m.records = append(m.records, record)
}

// Records returns a copy of the log.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *Memory) Decisions() []common.RiskDecision {
	var decisions []common.RiskDecision
	for _, record := range m.Records() {
		if record.Kind == KindDecision {
			decisions = append(decisions, record.Decision)
		}
	}
	return decisions
}

func (m *Memory) Submissions() []common.Submission {
	var submissions []common.Submission
	for _, record := range m.Records() {
		if record.Kind == KindSubmission {
			submissions = append(submissions, record.Submission)
		}
	}
	return submissions
}

// Fills returns the fills of the given run. A nil execution id matches every run.
func (m *Memory) Fills(_ context.Context, executionID utility.ExecutionID) ([]common.Fill, error) {
	var fills []common.Fill
	for _, record := range m.Records() {
		if record.Kind != KindFill {
			continue
		}
		if executionID != (utility.ExecutionID{}) && record.Fill.ExecutionID != executionID {
			continue
		}
		fills = append(fills, record.Fill)
	}
	return fills, nil
}
