package utility

import "strconv"

type TraceID = uint64

// Sequence hands out per-run monotonic identifiers. It is owned by a single run and is not
// safe for concurrent use.
type Sequence struct {
	prefix string
	next   TraceID
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NextTraceID() TraceID {
	s.next++
	return s.next
}

func (s *Sequence) Next() string {
	return s.prefix + "-" + strconv.FormatUint(s.NextTraceID(), 10)
}

func (s *Sequence) Last() TraceID {
	return s.next
}
