package bus

import (
	"time"

	"github.com/google/btree"
)

const queueDegree = 16

type key struct {
	ts  int64
	id  EventId
	seq uint64
}

func (k key) less(o key) bool {
	if k.ts != o.ts {
		return k.ts < o.ts
	}
	if k.id != o.id {
		return k.id < o.id
	}
	return k.seq < o.seq
}

type event struct {
	key
	data any
}

func (e event) TimeStamp() time.Time {
	return time.Unix(0, e.ts).UTC()
}

// queue orders events by (timestamp, event id, post sequence). Insertion order only breaks ties
// between events of the same kind at the same instant.
type queue struct {
	tree *btree.BTreeG[event]
}

func newQueue() *queue {
	return &queue{
		tree: btree.NewG[event](queueDegree, func(a, b event) bool { return a.less(b.key) }),
	}
}

func (q *queue) push(e event) {
	q.tree.ReplaceOrInsert(e)
}

func (q *queue) pop() (event, bool) {
	return q.tree.DeleteMin()
}

func (q *queue) len() int {
	return q.tree.Len()
}
